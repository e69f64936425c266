package file

import (
	"fmt"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

type LocalFileSystem struct {
}

func (fs *LocalFileSystem) String() string {
	return "file"
}

func (fs *LocalFileSystem) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (fs *LocalFileSystem) Open(fileName string) (io.ReadCloser, error) {
	return os.Open(fileName)
}

//Create create or truncate fileName, missing parent directories are created
func (fs *LocalFileSystem) Create(fileName string) (io.WriteCloser, error) {
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(fileName)
}

type FTPFileSystem struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileSystem) String() string {
	return fmt.Sprintf("ftp://%s:%d", fs.Host, fs.Port)
}

func (fs *FTPFileSystem) connect() (*ftp.ServerConn, error) {
	c, err := ftp.Dial(fmt.Sprintf("%s:%d", fs.Host, fs.Port), ftp.DialWithTimeout(fs.ConnTimeout))
	if err != nil {
		return nil, err
	}
	if err = c.Login(fs.User, fs.Password); err != nil {
		c.Quit()
		return nil, err
	}
	return c, nil
}

func (fs *FTPFileSystem) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if err != nil {
		return false, err
	}
	defer c.Quit()

	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}

//ftpReader keeps the connection open until the transfer is read
type ftpReader struct {
	conn *ftp.ServerConn
	resp *ftp.Response
}

func (r *ftpReader) Read(p []byte) (int, error) {
	return r.resp.Read(p)
}

func (r *ftpReader) Close() error {
	err := r.resp.Close()
	if er := r.conn.Quit(); er != nil && err == nil {
		err = er
	}
	return err
}

func (fs *FTPFileSystem) Open(fileName string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	resp, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &ftpReader{conn: c, resp: resp}, nil
}

//ftpWriter streams into a STOR running in the background, Close waits for the transfer
type ftpWriter struct {
	conn *ftp.ServerConn
	pw   *io.PipeWriter
	done chan error
}

func (w *ftpWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *ftpWriter) Close() error {
	w.pw.Close()
	err := <-w.done
	if er := w.conn.Quit(); er != nil && err == nil {
		err = er
	}
	return err
}

func (fs *FTPFileSystem) Create(fileName string) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		return nil, err
	}
	if dir := filepath.ToSlash(filepath.Dir(fileName)); dir != "." && dir != "/" {
		c.MakeDir(dir)
	}
	pr, pw := io.Pipe()
	w := &ftpWriter{conn: c, pw: pw, done: make(chan error, 1)}
	go func() {
		err := c.Stor(fileName, pr)
		if err != nil {
			pr.CloseWithError(err)
		}
		w.done <- errors.Wrapf(err, "stor %v", fileName)
	}()
	return w, nil
}
