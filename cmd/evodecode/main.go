package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/farouk15160/evocharger/internal/canframe"
	"github.com/farouk15160/evocharger/internal/charger"
	"github.com/farouk15160/evocharger/internal/config"
	"github.com/rs/zerolog/log"
)

// decoded is one output line.
type decoded struct {
	Direction canframe.Direction `json:"dir,omitempty"`
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Raw       string             `json:"raw"`
	Data      charger.Message    `json:"data"`
}

func main() {
	id := flag.String("id", "", "Decode a single frame with this hex identifier; the payload follows as arguments")
	file := flag.String("f", "", "Trace file to read instead of stdin")
	debug := flag.Bool("v", false, "Report skipped lines")
	flag.Parse()

	level := "info"
	if *debug {
		level = "debug"
	}
	config.SetupLogging(config.Log{Level: level, Console: true}, os.Stderr)

	out := json.NewEncoder(os.Stdout)

	if *id != "" {
		f, err := single(*id, strings.Join(flag.Args(), " "))
		if err != nil {
			log.Fatal().Err(err).Msg("Decode failed")
		}
		d, err := decode("", f)
		if err != nil {
			log.Fatal().Err(err).Msg("Decode failed")
		}
		out.Encode(d)
		return
	}

	in := io.Reader(os.Stdin)
	if *file != "" {
		fh, err := os.Open(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot open trace")
		}
		defer fh.Close()
		in = fh
	}

	n, failed, err := decodeTrace(in, out)
	if err != nil {
		log.Fatal().Err(err).Msg("Reading trace failed")
	}
	log.Debug().Int("frames", n).Int("failed", failed).Msg("Trace decoded")
}

func single(id, payload string) (canframe.Frame, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(id), "0x"), 16, 32)
	if err != nil {
		return canframe.Frame{}, fmt.Errorf("invalid id %q: %w", id, err)
	}
	data, err := canframe.ParseHex(payload)
	if err != nil {
		return canframe.Frame{}, err
	}
	return canframe.New(uint32(v), data)
}

func decode(dir canframe.Direction, f canframe.Frame) (decoded, error) {
	m, err := charger.Decode(f.ID, f.Payload())
	if err != nil {
		return decoded{}, err
	}
	switch v := m.(type) {
	case charger.Software:
		m = charger.Software{Version: v.String()}
	case charger.SerialNumber:
		m = charger.SerialNumber{Serial: v.String()}
	}
	return decoded{
		Direction: dir,
		ID:        fmt.Sprintf("0x%03X", f.ID),
		Name:      charger.Name(f.ID),
		Raw:       fmt.Sprintf("% X", f.Payload()),
		Data:      m,
	}, nil
}

// decodeTrace writes one JSON line per decodable trace line. Lines that are
// not traces are skipped silently.
func decodeTrace(r io.Reader, out *json.Encoder) (frames, failed int, err error) {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		t, err := canframe.ParseTrace(scanner.Text())
		if errors.Is(err, canframe.ErrNotTrace) {
			continue
		}
		if err == nil {
			var d decoded
			if d, err = decode(t.Direction, t.Frame); err == nil {
				err = out.Encode(d)
			}
		}
		if err != nil {
			failed++
			log.Debug().Err(err).Int("line", line).Msg("Skipped")
			continue
		}
		frames++
	}
	return frames, failed, scanner.Err()
}
