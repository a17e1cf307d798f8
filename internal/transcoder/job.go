package transcoder

import (
	"fmt"
	"os"
	"path/filepath"
)

// EncodeJob owns the scoped staging directory for one encoding invocation.
// The directory is never shared across jobs and is removed on every exit
// path via Close.
type EncodeJob struct {
	AudioID   string
	Dir       string
	inputName string
}

// newEncodeJob allocates a fresh staging directory under tempDir (the
// system default when empty).
func newEncodeJob(tempDir, audioID string) (*EncodeJob, error) {
	dir, err := os.MkdirTemp(tempDir, "encode-"+audioID+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &EncodeJob{AudioID: audioID, Dir: dir}, nil
}

// InputPath reserves the staged raw input's location inside the job
// directory so output enumeration can exclude it later.
func (j *EncodeJob) InputPath(fileName string) string {
	j.inputName = fileName
	return filepath.Join(j.Dir, fileName)
}

// OutputFiles enumerates the regular files directly inside the job
// directory, excluding the staged input. Not recursive.
func (j *EncodeJob) OutputFiles() ([]string, error) {
	entries, err := os.ReadDir(j.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read staging directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if entry.Name() == j.inputName {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// Close removes the staging directory and everything in it.
func (j *EncodeJob) Close() error {
	return os.RemoveAll(j.Dir)
}
