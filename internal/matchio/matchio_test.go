package matchio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	data := "0,0,5,-2\n1, 0, 6.5, -2\n0,1,5,-1\n"

	m, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 correspondences, got %d", m.Len())
	}
	if m.XDst[1] != 6.5 {
		t.Errorf("XDst[1] = %f, want 6.5", m.XDst[1])
	}
	if m.YDst[2] != -1 {
		t.Errorf("YDst[2] = %f, want -1", m.YDst[2])
	}
}

func TestReadCSVHeader(t *testing.T) {
	data := "x1,y1,x2,y2\n0,0,5,-2\n1,0,6,-2\n"

	m, err := ReadCSV(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("expected header to be skipped, got %d rows", m.Len())
	}
}

func TestReadCSVBadRow(t *testing.T) {
	data := "0,0,5,-2\n1,oops,6,-2\n"

	if _, err := ReadCSV(strings.NewReader(data)); err == nil {
		t.Error("expected error for non-numeric coordinate past the header")
	}
}

func TestReadCSVWrongFieldCount(t *testing.T) {
	data := "0,0,5\n"

	if _, err := ReadCSV(strings.NewReader(data)); err == nil {
		t.Error("expected error for row with three fields")
	}
}

func TestReadJSON(t *testing.T) {
	data := `[
		{"xSrc": 0, "ySrc": 0, "xDst": 5, "yDst": -2},
		{"xSrc": 1, "ySrc": 0, "xDst": 6, "yDst": -2}
	]`

	m, err := ReadJSON(strings.NewReader(data))
	if err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 correspondences, got %d", m.Len())
	}
	if m.XDst[0] != 5 || m.YDst[1] != -2 {
		t.Error("decoded coordinates do not match input")
	}
}

func TestReadJSONMalformed(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader(`{"not": "an array"}`)); err == nil {
		t.Error("expected error for non-array JSON")
	}
}

func TestLoadDispatch(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "matches.csv")
	if err := os.WriteFile(csvPath, []byte("0,0,1,1\n2,2,3,3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	jsonPath := filepath.Join(dir, "matches.json")
	if err := os.WriteFile(jsonPath, []byte(`[{"xSrc":0,"ySrc":0,"xDst":1,"yDst":1}]`), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(csvPath)
	if err != nil {
		t.Fatalf("Load(csv) failed: %v", err)
	}
	if m.Len() != 2 {
		t.Errorf("csv: expected 2 rows, got %d", m.Len())
	}

	m, err = Load(jsonPath)
	if err != nil {
		t.Fatalf("Load(json) failed: %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("json: expected 1 row, got %d", m.Len())
	}

	if _, err := Load(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
