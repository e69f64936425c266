package zonalbatch

import (
	"fmt"
	"github.com/pkg/errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

//FilePath an output path pattern, "{name}" or "{name,format}" placeholders resolve against a RunContext
type FilePath struct {
	NamePattern string
}

var paramRegexp = regexp.MustCompile("\\{[^\\}]+\\}")

//Format generate the real file path
func (f *FilePath) Format(runCtx *RunContext) (string, error) {
	var err error
	factPath := paramRegexp.ReplaceAllStringFunc(f.NamePattern, func(s string) string {
		s = s[1 : len(s)-1]
		param, format := s, ""
		if idx := strings.Index(s, ","); idx > 0 {
			param, format = s[0:idx], s[idx+1:]
		}
		if !runCtx.Exists(param) {
			if err == nil {
				err = errors.Errorf("can not find param:%v", param)
			}
			return ""
		}
		str, e := formatParam(runCtx.Get(param), format)
		if e != nil && err == nil {
			err = e
		}
		return str
	})
	if err != nil {
		return "", err
	}
	return factPath, nil
}

var dateFmtRegexp = regexp.MustCompile("yyyy|MM|dd|HH|mm|SS")

func formatParam(val interface{}, format string) (string, error) {
	if format == "" {
		if t, ok := val.(time.Time); ok {
			return t.Format("20060102"), nil
		}
		return fmt.Sprintf("%v", val), nil
	} else if dateFmtRegexp.MatchString(format) {
		format = strings.ReplaceAll(format, "yyyy", "2006")
		format = strings.ReplaceAll(format, "MM", "01")
		format = strings.ReplaceAll(format, "dd", "02")
		format = strings.ReplaceAll(format, "HH", "15")
		format = strings.ReplaceAll(format, "mm", "04")
		format = strings.ReplaceAll(format, "SS", "05")
		dt, err := parseDate(val)
		if err != nil {
			return "", err
		}
		return dt.Format(format), nil
	} else if idx := strings.Index(format, "#"); idx >= 0 {
		//zero padded number, "#4" or "4#"
		digit, err := strconv.Atoi(strings.Replace(format, "#", "", 1))
		if err != nil {
			return "", errors.Errorf("unsupported format:%v", format)
		}
		n, err := parseInteger(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%0*d", digit, n), nil
	}
	return "", errors.Errorf("unsupported format:%v", format)
}

func parseDate(val interface{}) (time.Time, error) {
	switch v := val.(type) {
	case time.Time:
		return v, nil
	case string:
		switch len(v) {
		case 8:
			return time.ParseInLocation("20060102", v, time.Local)
		case 10:
			return time.ParseInLocation("2006-01-02", v, time.Local)
		case 19:
			return time.ParseInLocation("2006-01-02 15:04:05", v, time.Local)
		}
	}
	return time.Time{}, errors.Errorf("can not parse to date:%v", val)
}

func parseInteger(val interface{}) (int64, error) {
	switch v := val.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	}
	return -1, errors.Errorf("can not parse to integer:%v", val)
}
