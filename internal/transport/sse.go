package transport

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
)

// firstEventRecord scans an event-stream body for the first data record
// that parses as JSON and returns it. Malformed data records are logged and
// skipped; nil is returned when the stream ends without a usable record.
//
// The streamable HTTP framing delivers at most one envelope per response,
// so scanning stops at the first hit.
func firstEventRecord(log *slog.Logger, body io.Reader) json.RawMessage {
	scanner := bufio.NewScanner(body)
	buf := make([]byte, maxScanTokenSize)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := scanner.Text()

		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			// event:, id:, retry:, comments, blank separators
			continue
		}

		data = strings.TrimSpace(data)
		if data == "" {
			continue
		}

		if !json.Valid([]byte(data)) {
			log.Debug("Skipping malformed event-stream record", "record", data)

			continue
		}

		return json.RawMessage(data)
	}

	if err := scanner.Err(); err != nil {
		log.Debug("Event-stream scanner error", "error", err)
	}

	return nil
}
