package models

const (
	DataSourceHint         = "hint"
	DataSourceEPUBMetadata = "epub_metadata"
	DataSourcePDFMetadata  = "pdf_metadata"
	DataSourceCBZMetadata  = "cbz_metadata"
	DataSourceDiscovery    = "discovery"
	DataSourceFilename     = "filename"
)

// IsPlaceholderSource reports whether a value from source may still be
// replaced by enrichment. Only filename-derived values are provisional.
func IsPlaceholderSource(source string) bool {
	return source == "" || source == DataSourceFilename
}
