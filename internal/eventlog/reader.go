package eventlog

import (
    "bufio"
    "encoding/json"
    "fmt"
    "io"
    "os"

    "github.com/klauspost/compress/zstd"

    "chainsim/internal/model"
)

// Reader decodes records from one zstd JSONL stream. Concatenated frames
// (one per appending writer session) are read transparently.
type Reader struct {
    dec  *zstd.Decoder
    sc   *bufio.Scanner
    line int
}

func NewReader(r io.Reader) (*Reader, error) {
    dec, err := zstd.NewReader(r)
    if err != nil {
        return nil, err
    }
    sc := bufio.NewScanner(dec)
    sc.Buffer(make([]byte, 64*1024), 4<<20)
    return &Reader{dec: dec, sc: sc}, nil
}

// Next returns the next record, or io.EOF.
func (r *Reader) Next() (Record, error) {
    var rec Record
    for r.sc.Scan() {
        r.line++
        b := r.sc.Bytes()
        if len(b) == 0 { continue }
        if err := json.Unmarshal(b, &rec); err != nil {
            return rec, fmt.Errorf("line %d: %w", r.line, err)
        }
        return rec, nil
    }
    if err := r.sc.Err(); err != nil {
        return rec, err
    }
    return rec, io.EOF
}

func (r *Reader) Close() { r.dec.Close() }

// ReadFile decodes every record in path.
func ReadFile(path string) ([]Record, error) {
    f, err := os.Open(path)
    if err != nil {
        return nil, err
    }
    defer f.Close()
    r, err := NewReader(f)
    if err != nil {
        return nil, err
    }
    defer r.Close()
    var out []Record
    for {
        rec, err := r.Next()
        if err == io.EOF {
            return out, nil
        }
        if err != nil {
            return out, err
        }
        out = append(out, rec)
    }
}

// Summary aggregates a sequence of records, as printed by the headless runner's replay mode.
type Summary struct {
    Runs        int                                              `json:"runs"`
    Dispatched  int                                              `json:"dispatched"`
    Arrived     int                                              `json:"arrived"`
    Units       float64                                          `json:"units"`
    EmissionsKg map[model.Scenario]map[model.VehicleType]float64 `json:"emissionsKg"`
    LastPoints  map[model.Scenario]model.ComparisonPoint         `json:"lastPoints"`
}

func Summarize(recs []Record) Summary {
    s := Summary{
        EmissionsKg: map[model.Scenario]map[model.VehicleType]float64{},
        LastPoints:  map[model.Scenario]model.ComparisonPoint{},
    }
    for _, r := range recs {
        switch r.Type {
        case TypeRunStarted:
            s.Runs++
        case TypeShipmentDispatched:
            if r.Shipment == nil { continue }
            s.Dispatched++
            s.Units += r.Shipment.Size
            byV := s.EmissionsKg[r.Shipment.Scenario]
            if byV == nil {
                byV = map[model.VehicleType]float64{}
                s.EmissionsKg[r.Shipment.Scenario] = byV
            }
            byV[r.Shipment.Vehicle] += r.Shipment.EmissionsKg
        case TypeShipmentArrived:
            s.Arrived++
        case TypeSnapshot:
            for _, p := range r.Points { s.LastPoints[p.Scenario] = p.ComparisonPoint }
        }
    }
    return s
}
