package repository

import (
	"github.com/sirupsen/logrus"

	"orbit-station/internal/model"
	"orbit-station/internal/stablekv"
)

// systemInfoKey is the fixed key the SystemInfo singleton lives at — the
// persisted state layout names it as "a single SystemInfo singleton"
// (spec.md §6), so one stablekv.Store entry under a constant key suffices
// rather than a repository keyed by entity id.
const systemInfoKey = "singleton"

// SystemInfo is the C1 repository for the station-wide model.SystemInfo
// singleton.
type SystemInfo struct {
	primary *stablekv.Store[string, model.SystemInfo]
}

func OpenSystemInfo(dir string, log *logrus.Entry) (*SystemInfo, error) {
	primary, err := stablekv.Open[string, model.SystemInfo](dir, "system_info", log)
	if err != nil {
		return nil, err
	}
	return &SystemInfo{primary: primary}, nil
}

// Get returns the stored SystemInfo, or its zero value if the station has
// never written one (pre-bootstrap).
func (r *SystemInfo) Get() model.SystemInfo {
	info, _ := r.primary.Get(systemInfoKey)
	return info
}

func (r *SystemInfo) Set(info model.SystemInfo) error {
	_, _, err := r.primary.Insert(systemInfoKey, info)
	return err
}

// Rebuild is a no-op: the singleton has no secondary indices, but the
// method exists so SystemInfo uniformly satisfies the rebuildable contract
// from spec.md §4.1.
func (r *SystemInfo) Rebuild() error { return nil }
