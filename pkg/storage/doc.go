// Package storage manages the download directory and the mapping ledger.
//
// The storage package handles:
//   - Creating the download directory and listing its files
//   - Snapshotting the directory before a download and diffing after it
//   - The download_mapping.txt ledger of url|filename records
//   - Watching the directory so a download settle window can end early
//
// The browser's own download manager writes the media files; this package
// only observes them. The tool writes three files of its own (the ledger,
// the pending checkpoint and a debug screenshot) and every diff ignores
// them, along with partial downloads (.crdownload, .part, .tmp).
//
// Usage:
//
//	manager, err := storage.NewManager("downloads")
//	if err != nil {
//	    return err
//	}
//	before, _ := manager.Snapshot()
//	// ... trigger the download ...
//	added, _ := manager.NewFiles(before)
//
//	ledger, err := storage.OpenMappingStore(manager.Dir())
//	if err != nil {
//	    return err
//	}
//	ledger.Append(models.MappingRecord{URL: url, Filename: added[0].Name})
package storage
