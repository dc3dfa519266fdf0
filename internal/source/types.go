package source

type (
	// FileID uniquely identifies a source file within a FileSet.
	FileID uint32 // просто ID источника
	// FileFlags encodes metadata about a source file.
	FileFlags uint8 // метаданные
)

const (
	// FileHadBOM: с диска прочитан UTF-8 BOM, он срезан.
	FileHadBOM FileFlags = 1 << iota
	FileNormalizedCRLF
	FileNormalizedNFC
)

// File captures metadata and content for a single source file.
type File struct {
	ID      FileID
	Path    string
	Content []byte
	Hash    Digest
	Flags   FileFlags
}

// Text returns the file content as a string.
func (f *File) Text() string {
	if f == nil {
		return ""
	}
	return string(f.Content)
}
