package storage

import (
	"encoding/json"
	"os"

	"github.com/san-kum/pimc/internal/stats"
)

type ExportData struct {
	Meta   RunMetadata          `json:"meta"`
	Blocks []stats.BlockAverage `json:"blocks"`
}

// ExportJSONStdout dumps a stored run as indented JSON.
func ExportJSONStdout(meta *RunMetadata, blocks []stats.BlockAverage) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Meta: *meta, Blocks: blocks})
}
