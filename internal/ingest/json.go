package ingest

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// ReadJSON decodes periods from either a bare array of period objects or an
// object with a "periods" array.
func ReadJSON(r io.Reader, source model.Source) ([]model.RawPeriod, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "json: read input")
	}
	data = bytes.TrimSpace(data)

	var periods []model.RawPeriod
	if bytes.HasPrefix(data, []byte("[")) {
		if err := json.Unmarshal(data, &periods); err != nil {
			return nil, eris.Wrap(err, "json: decode period array")
		}
	} else {
		var doc struct {
			Periods []model.RawPeriod `json:"periods"`
		}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "json: decode period document")
		}
		periods = doc.Periods
	}

	for i := range periods {
		if periods[i].Source != "" && periods[i].Source != source {
			return nil, eris.Errorf("json: period %d is tagged %q, expected %q", i, periods[i].Source, source)
		}
		periods[i].Source = source
	}
	if periods == nil {
		periods = []model.RawPeriod{}
	}
	return periods, nil
}
