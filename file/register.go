package file

// file type
type fileHandler struct {
	reader LayerReader
	writer LayerWriter
}

var fileHandlers = map[string]*fileHandler{}

// RegisterFileType register a reader and writer for a custom file type
func RegisterFileType(ftype string, reader LayerReader, writer LayerWriter) {
	fileHandlers[ftype] = &fileHandler{
		reader: reader,
		writer: writer,
	}
}

// GetLayerReader get LayerReader by type
func GetLayerReader(ftype string) LayerReader {
	switch ftype {
	case GeoJSON:
		return &geojsonLayerReader{}
	case CSV:
		return &xsvLayerReader{separator: ','}
	case TSV:
		return &xsvLayerReader{separator: '\t'}
	default:
		if fh := fileHandlers[ftype]; fh != nil {
			return fh.reader
		}
	}
	return nil
}

// GetLayerWriter get LayerWriter by type
func GetLayerWriter(ftype string) LayerWriter {
	switch ftype {
	case GeoJSON:
		return &geojsonLayerWriter{}
	case CSV:
		return &xsvLayerWriter{separator: ','}
	case TSV:
		return &xsvLayerWriter{separator: '\t'}
	default:
		if fh := fileHandlers[ftype]; fh != nil {
			return fh.writer
		}
	}
	return nil
}

// checksumer
var checksumers = map[string]Checksumer{}

func RegisterChecksumer(key string, ch Checksumer) {
	checksumers[key] = ch
}

// GetChecksumer get Checksumer by type
func GetChecksumer(key string) Checksumer {
	switch key {
	case OKFlag:
		return &OKFlagChecksumer{}
	case MD5, SHA1, SHA256, SHA512:
		return &DigestChecksumer{Alg: key}
	default:
		return checksumers[key]
	}
}
