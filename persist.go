package zonalbatch

import (
	"context"
	"fmt"
	"github.com/chararch/zonalbatch/file"
	"github.com/chararch/zonalbatch/table"
	"github.com/chararch/zonalbatch/vector"
	"path/filepath"
	"strings"
)

//VirtualLayerName name of the in-memory result layer
const VirtualLayerName = "result_zonal_layer"

const (
	msgShape    = "Zonal ExactExtract task result shape: (%d, %d)"
	msgFinished = "Finished calculating statistics"
	msgNoReload = "Unable to load layer from %s"
)

//Persister writes result layers and loads them back
type Persister interface {
	Write(ctx context.Context, layer *vector.Layer, path string) error
	//Load never fails, an unreadable path yields a layer whose IsValid is false
	Load(ctx context.Context, path string) *vector.Layer
}

//FilePersister a Persister over a file.FileStorage. Format defaults to the type implied by the
//path extension, then to GeoJSON. A non empty Checksum writes a companion file after each write.
type FilePersister struct {
	Store    file.FileStorage
	Format   string
	Checksum string
}

func (p *FilePersister) descriptor(path string) file.FileDescriptor {
	tp := p.Format
	if tp == "" {
		tp = file.TypeOf(path)
	}
	if tp == "" {
		tp = file.GeoJSON
	}
	return file.FileDescriptor{FileStore: p.Store, FileName: path, Type: tp, Checksum: p.Checksum}
}

func (p *FilePersister) Write(ctx context.Context, layer *vector.Layer, path string) error {
	fd := p.descriptor(path)
	writer := file.GetLayerWriter(fd.Type)
	if writer == nil {
		return NewBatchError(ErrCodePersist, "unsupported output format:%v", fd.Type)
	}
	if err := writer.Write(fd, layer); err != nil {
		return NewBatchError(ErrCodePersist, "write %v failed", fd, err)
	}
	if fd.Checksum != "" {
		checksumer := file.GetChecksumer(fd.Checksum)
		if checksumer == nil {
			return NewBatchError(ErrCodePersist, "unknown checksum:%v", fd.Checksum)
		}
		if err := checksumer.Checksum(fd); err != nil {
			return NewBatchError(ErrCodePersist, "write checksum of %v failed", fd, err)
		}
	}
	logger.Info(ctx, "wrote %d features to %v", layer.FeatureCount(), fd)
	return nil
}

func (p *FilePersister) Load(ctx context.Context, path string) *vector.Layer {
	fd := p.descriptor(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	reader := file.GetLayerReader(fd.Type)
	if reader == nil {
		logger.Warn(ctx, "no reader for format:%v", fd.Type)
		return vector.NewInvalidLayer(name, path)
	}
	if fd.Checksum != "" {
		if checksumer := file.GetChecksumer(fd.Checksum); checksumer != nil {
			if ok, err := checksumer.Verify(fd); err != nil || !ok {
				logger.Warn(ctx, "checksum of %v does not verify, err:%v", fd, err)
				return vector.NewInvalidLayer(name, path)
			}
		}
	}
	layer, err := reader.Read(fd)
	if err != nil {
		logger.Warn(ctx, "read %v failed, err:%v", fd, err)
		return vector.NewInvalidLayer(name, path)
	}
	return layer
}

//saveResult join combined onto the input attributes and publish the joined layer, either
//in memory or through the persister. Messages for the user go to the console here.
func (o *Orchestrator) saveResult(ctx context.Context, combined *table.Table) (err BatchError) {
	run := o.run
	defer func() {
		if r := recover(); r != nil {
			err = NewBatchError(ErrCodeGeneral, "save result panic:%v", r)
		}
		if err != nil {
			logger.Error(ctx, "ERROR: %v", err)
			o.console.Error(err.Message())
		}
	}()
	rows, cols := combined.Shape()
	msg := fmt.Sprintf(msgShape, rows, cols)
	logger.Info(ctx, "%s", msg)
	o.console.Info(msg)
	run.execution.CombinedRows = rows

	joined, e := table.LeftJoin(run.inputTable, combined, run.descriptor.IDField())
	if e != nil {
		return NewBatchError(ErrCodePersist, "join statistics on %v", run.descriptor.IDField(), e)
	}
	run.execution.OutputRows = joined.NumRows()
	if run.descriptor.Virtual() {
		layer, e := vector.FromTable(VirtualLayerName, joined)
		if e != nil {
			return NewBatchError(ErrCodePersist, "build %v", VirtualLayerName, e)
		}
		o.project.AddLayer(layer)
		return nil
	}
	path := run.execution.OutputPath
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	layer, e := vector.FromTable(name, joined)
	if e != nil {
		return NewBatchError(ErrCodePersist, "build %v", name, e)
	}
	if e = o.persister.Write(ctx, layer, path); e != nil {
		if be, ok := e.(BatchError); ok {
			return be
		}
		return NewBatchError(ErrCodePersist, "write %v failed", path, e)
	}
	loaded := o.persister.Load(ctx, path)
	if !loaded.IsValid() {
		return NewBatchError(ErrCodePersist, msgNoReload, path)
	}
	o.console.Info(msgFinished)
	o.project.AddLayer(loaded)
	if o.publisher != nil {
		src := file.FileDescriptor{FileStore: o.storeOf(), FileName: path, Type: file.TypeOf(path)}
		if perr := o.publisher.Publish(ctx, src); perr != nil {
			logger.Error(ctx, "publish output failed, err:%v", perr)
			o.console.Warning(perr.Message())
		}
	}
	return nil
}
