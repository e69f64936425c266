package zonalbatch

import (
	"context"
	"github.com/chararch/zonalbatch/util"
	"github.com/chararch/zonalbatch/vector"
)

//FormValues raw values of a calculation request as entered by the user
type FormValues struct {
	Raster       string
	Vector       *vector.Layer
	IDField      string
	Aggregates   []string
	Arrays       []string
	ParallelJobs int
	OutputPath   string
	Virtual      bool
	Prefix       string
}

//Descriptor a validated calculation request, immutable once built
type Descriptor struct {
	raster       string
	layer        *vector.Layer
	idField      vector.Field
	aggregates   []string
	arrays       []string
	parallelJobs int
	outputPath   string
	virtual      bool
	prefix       string
}

const (
	MsgNoLayer       = "You didn't select raster layer or vector layer"
	MsgNoIDField     = "You didn't select ID field"
	MsgNoOutputPath  = "You didn't select output file path"
	MsgNoStats       = "You didn't select anything from either Aggregates and Arrays"
	MsgBadJobs       = "Parallel jobs must be a positive number"
	msgMissingIDFile = "ID field %v doesn't exist in layer %v"
)

//BuildDescriptor validate values, the first failing rule yields a validation error carrying the user message.
//Uniqueness of the identifier field is not checked.
func BuildDescriptor(values FormValues) (*Descriptor, BatchError) {
	if values.Raster == "" || values.Vector == nil {
		return nil, NewBatchError(ErrCodeValidation, MsgNoLayer)
	}
	if values.IDField == "" {
		return nil, NewBatchError(ErrCodeValidation, MsgNoIDField)
	}
	field, ok := values.Vector.Field(values.IDField)
	if !ok {
		return nil, NewBatchError(ErrCodeValidation, msgMissingIDFile, values.IDField, values.Vector.Name())
	}
	if !values.Virtual && values.OutputPath == "" {
		return nil, NewBatchError(ErrCodeValidation, MsgNoOutputPath)
	}
	if len(values.Aggregates) == 0 && len(values.Arrays) == 0 {
		return nil, NewBatchError(ErrCodeValidation, MsgNoStats)
	}
	if values.ParallelJobs <= 0 {
		return nil, NewBatchError(ErrCodeValidation, MsgBadJobs)
	}
	return &Descriptor{
		raster:       values.Raster,
		layer:        values.Vector,
		idField:      field,
		aggregates:   util.CopyStrings(values.Aggregates),
		arrays:       util.CopyStrings(values.Arrays),
		parallelJobs: values.ParallelJobs,
		outputPath:   values.OutputPath,
		virtual:      values.Virtual,
		prefix:       values.Prefix,
	}, nil
}

func (d *Descriptor) Raster() string {
	return d.raster
}

func (d *Descriptor) Layer() *vector.Layer {
	return d.layer
}

func (d *Descriptor) IDField() string {
	return d.idField.Name
}

//IDType declared type of the identifier field
func (d *Descriptor) IDType() vector.FieldType {
	return d.idField.Type
}

func (d *Descriptor) Aggregates() []string {
	return util.CopyStrings(d.aggregates)
}

func (d *Descriptor) Arrays() []string {
	return util.CopyStrings(d.arrays)
}

//Stats aggregates followed by arrays, duplicates removed
func (d *Descriptor) Stats() []string {
	return util.UniqueStrings(d.aggregates, d.arrays)
}

func (d *Descriptor) ParallelJobs() int {
	return d.parallelJobs
}

func (d *Descriptor) OutputPath() string {
	return d.outputPath
}

func (d *Descriptor) Virtual() bool {
	return d.virtual
}

func (d *Descriptor) Prefix() string {
	return d.prefix
}

//Key a stable digest of the request, equal requests get equal keys
func (d *Descriptor) Key() string {
	params := map[string]interface{}{
		"raster":        d.raster,
		"layer":         d.layer.Name(),
		"id_field":      d.idField.Name,
		"aggregates":    d.aggregates,
		"arrays":        d.arrays,
		"parallel_jobs": d.parallelJobs,
		"output":        d.outputPath,
		"virtual":       d.virtual,
		"prefix":        d.prefix,
	}
	str, err := util.JsonString(params)
	if err != nil {
		logger.Warn(context.Background(), "marshal run parameters failed, err:%v", err)
	}
	return util.MD5(str)
}
