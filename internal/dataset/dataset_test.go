package dataset

import (
	"reflect"
	"strings"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		schema  Schema
		wantErr bool
	}{
		{"ok", Schema{Names: []string{"a", "b"}, Types: []ColumnType{Continuous, Categorical}}, false},
		{"empty", Schema{}, true},
		{"length mismatch", Schema{Names: []string{"a"}, Types: nil}, true},
		{"duplicate names", Schema{Names: []string{"a", "a"}, Types: []ColumnType{Continuous, Continuous}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.schema)
			if (err != nil) != tt.wantErr {
				t.Errorf("New err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTable_AppendWidthCheck(t *testing.T) {
	tbl, _ := New(Schema{Names: []string{"a", "b"}, Types: []ColumnType{Continuous, Continuous}})
	if err := tbl.Append(Row{{Float: 1}}); err == nil {
		t.Error("short row must be rejected")
	}
	if err := tbl.Append(Row{{Float: 1}, {Float: 2}}); err != nil {
		t.Errorf("valid row rejected: %v", err)
	}
	if tbl.NumRows() != 1 {
		t.Errorf("NumRows = %d", tbl.NumRows())
	}
}

func TestSchema_Index(t *testing.T) {
	s := Schema{Names: []string{"age", "income"}, Types: []ColumnType{Continuous, Continuous}}
	if s.Index("income") != 1 {
		t.Errorf("Index(income) = %d", s.Index("income"))
	}
	if s.Index("missing") != -1 {
		t.Errorf("Index(missing) = %d", s.Index("missing"))
	}
}

func TestReadCSV(t *testing.T) {
	csvData := `age,country,approved
34,US,yes
51,DE,no
29,FR,yes
`
	tbl, resp, err := ReadCSV(strings.NewReader(csvData), "approved")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}

	wantNames := []string{"age", "country"}
	if !reflect.DeepEqual(tbl.Schema.Names, wantNames) {
		t.Errorf("names = %v, want %v", tbl.Schema.Names, wantNames)
	}
	if tbl.Schema.Types[0] != Continuous || tbl.Schema.Types[1] != Categorical {
		t.Errorf("inferred types = %v", tbl.Schema.Types)
	}
	if tbl.NumRows() != 3 {
		t.Fatalf("rows = %d", tbl.NumRows())
	}
	if tbl.Rows[1][0].Float != 51 || tbl.Rows[1][1].Level != "DE" {
		t.Errorf("row 1 = %+v", tbl.Rows[1])
	}
	if !reflect.DeepEqual(resp, []string{"yes", "no", "yes"}) {
		t.Errorf("responses = %v", resp)
	}
}

func TestReadCSV_NoResponse(t *testing.T) {
	csvData := "x,y\n1,2\n3,4\n"
	tbl, resp, err := ReadCSV(strings.NewReader(csvData), "")
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if tbl.Schema.Len() != 2 || resp != nil {
		t.Errorf("schema len = %d, responses = %v", tbl.Schema.Len(), resp)
	}
}

func TestReadCSV_Errors(t *testing.T) {
	if _, _, err := ReadCSV(strings.NewReader("x,y\n1,2\n"), "z"); err == nil {
		t.Error("missing response column must error")
	}
	if _, _, err := ReadCSV(strings.NewReader("x,y\n"), ""); err == nil {
		t.Error("header-only csv must error")
	}
}

func TestRow_Clone(t *testing.T) {
	r := Row{{Float: 1}, {Level: "a"}}
	c := r.Clone()
	c[0].Float = 99
	if r[0].Float != 1 {
		t.Error("clone must not share backing storage")
	}
}
