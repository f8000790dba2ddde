package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CSV appends trade records to a flat file, writing the header only
// when the file is created.
type CSV struct {
	file *os.File
	w    *csv.Writer
}

func NewCSV(path string) (*CSV, error) {
	info, statErr := os.Stat(path)
	fresh := statErr != nil || info.Size() == 0

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	j := &CSV{file: file, w: csv.NewWriter(file)}
	if fresh {
		if err := j.w.Write([]string{"id", "timestamp", "symbol", "qty", "price", "action", "reason"}); err != nil {
			file.Close()
			return nil, err
		}
		j.w.Flush()
	}
	return j, j.w.Error()
}

func (j *CSV) Record(t TradeRecord) error {
	err := j.w.Write([]string{
		t.ID,
		t.Timestamp.UTC().Format(time.RFC3339),
		t.Symbol,
		strconv.Itoa(t.Qty),
		fmt.Sprintf("%.4f", t.Price),
		t.Action,
		t.Reason,
	})
	if err != nil {
		return err
	}
	j.w.Flush()
	return j.w.Error()
}

func (j *CSV) Close() error {
	j.w.Flush()
	if err := j.w.Error(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}
