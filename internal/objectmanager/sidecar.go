package objectmanager

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tigrawap/objload/internal/ogerrors"
)

// sidecarState is the recovery metadata persisted alongside the segment
// files: the name prefix segments are built from, and the highest segment
// index currently in use.
type sidecarState struct {
	Prefix     string `json:"prefix"`
	CurrentMax int    `json:"currentMax"`
}

func sidecarPath(dir, prefix string) string {
	return filepath.Join(dir, prefix+".sidecar.json")
}

func loadSidecar(dir, prefix string) (sidecarState, error) {
	path := sidecarPath(dir, prefix)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return sidecarState{Prefix: prefix, CurrentMax: 0}, nil
	}
	if err != nil {
		return sidecarState{}, ogerrors.NewInternalError("read object manager sidecar", err)
	}
	var s sidecarState
	if err := json.Unmarshal(data, &s); err != nil {
		return sidecarState{}, ogerrors.NewInternalError("parse object manager sidecar", err)
	}
	return s, nil
}

func saveSidecar(dir string, s sidecarState) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ogerrors.NewInternalError("encode object manager sidecar", err)
	}
	path := sidecarPath(dir, s.Prefix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return ogerrors.NewInternalError("write object manager sidecar", err)
	}
	return nil
}
