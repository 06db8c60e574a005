package transfer

import (
	"errors"
	"testing"
)

func TestVerifySchedules(t *testing.T) {
	valid := func() ([][]ExportEntry, [][]ImportEntry) {
		return [][]ExportEntry{
				{{0, 0, Owner}, {1, 1, Owner}, {2, 1, Owner}, {3, 0, Overlap}},
				nil,
			}, [][]ImportEntry{
				{{0, 0, Owner, NoTag}},
				{{2, 1, Owner, NoTag}, {1, 1, Owner, NoTag}, {3, 1, Overlap, NoTag}},
			}
	}

	exports, imports := valid()
	if err := VerifySchedules(exports, imports); err != nil {
		t.Fatalf("Expected valid schedule, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry)
	}{
		{"rank count mismatch", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			return e, i[:1]
		}},
		{"export to missing rank", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			e[0][1].Rank = 7
			return e, i
		}},
		{"cell exported twice", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			e[1] = append(e[1], ExportEntry{1, 1, Owner})
			return e, i
		}},
		{"import without export", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			i[1] = append(i[1], ImportEntry{9, 1, Owner, NoTag})
			return e, i
		}},
		{"import on wrong rank", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			i[0] = append(i[0], ImportEntry{1, 0, Owner, NoTag})
			return e, i
		}},
		{"import tagged for another rank", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			i[1][0].Rank = 0
			return e, i
		}},
		{"cell imported twice", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			i[1] = append(i[1], ImportEntry{2, 1, Owner, NoTag})
			return e, i
		}},
		{"export never imported", func(e [][]ExportEntry, i [][]ImportEntry) ([][]ExportEntry, [][]ImportEntry) {
			i[1] = i[1][1:]
			return e, i
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySchedules(tt.mutate(valid()))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !errors.Is(err, ErrInconsistentSchedule) {
				t.Errorf("Expected ErrInconsistentSchedule, got %v", err)
			}
		})
	}
}

func TestAttributeString(t *testing.T) {
	cases := map[Attribute]string{Owner: "owner", Overlap: "overlap", Copy: "copy", 9: "attribute(9)"}
	for a, want := range cases {
		if a.String() != want {
			t.Errorf("Attribute %d: expected %q, got %q", uint8(a), want, a.String())
		}
	}
	e := ExportEntry{Cell: 3, Rank: 1, Attr: Owner}
	if e.String() != "(3,1,owner)" {
		t.Errorf("Unexpected export string %s", e)
	}
	i := ImportEntry{Cell: 3, Rank: 1, Attr: Owner, Tag: NoTag}
	if i.String() != "(3,1,owner,-1)" {
		t.Errorf("Unexpected import string %s", i)
	}
}
