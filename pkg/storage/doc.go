// Package storage writes harvest output files.
//
// Every write goes through a temporary file in the destination directory,
// is fsynced and then renamed over the target, so a crash never leaves a
// half-written snapshot or checkpoint behind.
//
// Usage:
//
//	manager, err := storage.NewManager("data/raw")
//	if err != nil {
//	    return err
//	}
//	path, err := manager.SaveJSON("users.json", &storage.Snapshot{
//	    ScrapedAt:    time.Now(),
//	    Total:        len(records),
//	    RecordsField: "users",
//	    Records:      records,
//	    Cookies:      jar.Snapshot(),
//	})
package storage
