package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// StorageScheme is the directory layout policy of a storage area. It is
// fixed per area and copied onto the event row at creation so the layout
// of old events survives a later reconfiguration.
type StorageScheme int

const (
	SchemeShallow StorageScheme = iota
	SchemeMedium
	SchemeDeep
)

func (s StorageScheme) String() string {
	switch s {
	case SchemeMedium:
		return "Medium"
	case SchemeDeep:
		return "Deep"
	default:
		return "Shallow"
	}
}

func ParseScheme(s string) (StorageScheme, error) {
	switch s {
	case "Shallow":
		return SchemeShallow, nil
	case "Medium":
		return SchemeMedium, nil
	case "Deep":
		return SchemeDeep, nil
	}
	return SchemeShallow, fmt.Errorf("unknown storage scheme %q", s)
}

// ResolveEventPath creates the event directory for the given scheme and
// returns it. All levels are created idempotently; concurrent creation by
// another process is expected and harmless. A non-EEXIST creation error is
// returned alongside the computed path so the caller can log and continue
// degraded; later image writes into the missing directory fail per frame.
func ResolveEventPath(root string, monitorID, eventID int64, start time.Time, scheme StorageScheme) (string, error) {
	path := filepath.Join(root, fmt.Sprintf("%d", monitorID))
	// Normally the monitor dir exists already, but in odd cases might not.
	firstErr := mkdirTolerant(path)

	switch scheme {
	case SchemeDeep:
		parts := []int{
			start.Year() % 100, int(start.Month()), start.Day(),
			start.Hour(), start.Minute(), start.Second(),
		}
		var dayPath string
		for i, p := range parts {
			path = filepath.Join(path, fmt.Sprintf("%02d", p))
			if err := mkdirTolerant(path); err != nil && firstErr == nil {
				firstErr = err
			}
			if i == 2 {
				dayPath = path
			}
		}
		// Day-level symlink .<id> -> hh/mm/ss lets tools resolve an event
		// id without walking six directory levels.
		timePath := fmt.Sprintf("%02d/%02d/%02d", start.Hour(), start.Minute(), start.Second())
		idLink := filepath.Join(dayPath, fmt.Sprintf(".%d", eventID))
		if err := os.Symlink(timePath, idLink); err != nil && !os.IsExist(err) {
			log.Printf("[ERROR] Scheme: can't symlink %s -> %s: %v", idLink, timePath, err)
			if firstErr == nil {
				firstErr = err
			}
		}

	case SchemeMedium:
		path = filepath.Join(path, start.Format("2006-01-02"))
		if err := mkdirTolerant(path); err != nil && firstErr == nil {
			firstErr = err
		}
		path = filepath.Join(path, fmt.Sprintf("%d", eventID))
		if err := mkdirTolerant(path); err != nil && firstErr == nil {
			firstErr = err
		}

	default: // SchemeShallow
		path = filepath.Join(path, fmt.Sprintf("%d", eventID))
		if err := mkdirTolerant(path); err != nil && firstErr == nil {
			firstErr = err
		}
		// Empty .<id> tag file marks the directory for external tools.
		idFile := filepath.Join(path, fmt.Sprintf(".%d", eventID))
		if f, err := os.Create(idFile); err != nil {
			log.Printf("[ERROR] Scheme: can't create %s: %v", idFile, err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			f.Close()
		}
	}

	return path, firstErr
}

func mkdirTolerant(path string) error {
	if err := os.Mkdir(path, 0755); err != nil && !os.IsExist(err) {
		log.Printf("[ERROR] Scheme: can't mkdir %s: %v", path, err)
		return err
	}
	return nil
}
