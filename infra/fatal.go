package infra

import (
	"encoding/json"
	"os"
	"runtime/debug"
	"time"

	log "github.com/sirupsen/logrus"
)

const fatalDumpFile = "error.txt"

type fatalRecord struct {
	Date  time.Time `json:"date"`
	Pid   int       `json:"pid"`
	Error string    `json:"error"`
	Stack string    `json:"stack"`
}

// DumpFatal appends a diagnostic record to error.txt so a crash that takes
// the whole process tree down leaves a trace on disk. Best effort: a
// failing dump only logs.
func DumpFatal(err error) {
	record := fatalRecord{
		Date:  time.Now().UTC(),
		Pid:   os.Getpid(),
		Error: err.Error(),
		Stack: string(debug.Stack()),
	}

	f, ferr := os.OpenFile(fatalDumpFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if ferr != nil {
		log.Errorf("can't open %s: %v", fatalDumpFile, ferr)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	if werr := enc.Encode(record); werr != nil {
		log.Errorf("can't write %s: %v", fatalDumpFile, werr)
	}
}
