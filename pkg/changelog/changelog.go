package changelog

import (
	"os"

	"github.com/twpayne/go-vfs"
	"github.com/variantdev/libroll/pkg/vfsutil"
)

type Writer struct {
	fs vfs.FS
}

func New(fs vfs.FS) *Writer {
	if fs == nil {
		fs = vfs.HostOSFS
	}
	return &Writer{fs: fs}
}

// WriteCurrentVersionMarker replaces the marker content with the version, creating the file if needed.
func (w *Writer) WriteCurrentVersionMarker(path, version string) error {
	return vfsutil.WriteFileAtomic(w.fs, path, []byte(version+"\n"))
}

// PrependReleaseNote puts note on top of the existing notes.
func (w *Writer) PrependReleaseNote(path, note string) error {
	prev, err := w.fs.ReadFile(path)
	if os.IsNotExist(err) {
		return vfsutil.WriteFileAtomic(w.fs, path, []byte(note))
	}
	if err != nil {
		return err
	}

	content := make([]byte, 0, len(note)+1+len(prev))
	content = append(content, note...)
	content = append(content, '\n')
	content = append(content, prev...)

	return vfsutil.WriteFileAtomic(w.fs, path, content)
}
