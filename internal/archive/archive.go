package archive

import (
	"io"
	"os"
	"path/filepath"

	"turnpp/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zip"
)

// Create writes files into destDir+baseName+".zip", each stored under its
// base name in input order. A partially written archive is removed.
func Create(destDir, baseName string, files []domain.TypedFile) (string, error) {
	if len(files) == 0 {
		return "", errors.New("archive: no files to package")
	}
	zipPath := destDir + baseName + ".zip"

	out, err := os.Create(zipPath)
	if err != nil {
		return "", errors.Wrap(err, "create archive")
	}
	if err := writeEntries(out, files); err != nil {
		_ = os.Remove(zipPath)
		return "", errors.Wrapf(err, "archive %s", filepath.Base(zipPath))
	}
	return zipPath, nil
}

// writeEntries fills out and always closes it.
func writeEntries(out *os.File, files []domain.TypedFile) error {
	zw := zip.NewWriter(out)
	for _, f := range files {
		if err := addFile(zw, f.Path); err != nil {
			_ = zw.Close()
			_ = out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		_ = out.Close()
		return errors.Wrap(err, "finalize")
	}
	return errors.Wrap(out.Close(), "close")
}

func addFile(zw *zip.Writer, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrap(err, "open source")
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return errors.Wrap(err, "stat source")
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return errors.Wrapf(err, "header %s", src)
	}
	hdr.Name = filepath.Base(src)
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return errors.Wrapf(err, "add %s", hdr.Name)
	}
	if _, err := io.Copy(w, in); err != nil {
		return errors.Wrapf(err, "write %s", hdr.Name)
	}
	return nil
}
