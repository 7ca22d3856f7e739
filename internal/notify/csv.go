package notify

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"gammawatch/internal/signals"
)

// appendCSV writes one alert row into alerts_YYYYMMDD.csv next to the binary.
func appendCSV(a signals.Alert) error {
	filename := fmt.Sprintf("alerts_%s.csv", a.Time.Format("20060102"))
	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	return w.Write([]string{
		a.Time.Format(time.RFC3339),
		string(a.Kind),
		a.Instrument,
		a.Symbol,
		fmt.Sprintf("%.2f", a.Price),
		a.Info,
	})
}
