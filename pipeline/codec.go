package pipeline

import (
	"fmt"

	"github.com/notargets/wellpart/transfer"
)

// Transfer lists travel between ranks as flat int slices

func encodeExports(list []transfer.ExportEntry) []int {
	data := make([]int, 0, 3*len(list))
	for _, e := range list {
		data = append(data, e.Cell, e.Rank, int(e.Attr))
	}
	return data
}

func decodeExports(data []int) ([]transfer.ExportEntry, error) {
	if len(data)%3 != 0 {
		return nil, fmt.Errorf("export encoding has length %d", len(data))
	}
	list := make([]transfer.ExportEntry, 0, len(data)/3)
	for i := 0; i < len(data); i += 3 {
		list = append(list, transfer.ExportEntry{
			Cell: data[i], Rank: data[i+1], Attr: transfer.Attribute(data[i+2])})
	}
	return list, nil
}

func encodeImports(list []transfer.ImportEntry) []int {
	data := make([]int, 0, 4*len(list))
	for _, e := range list {
		data = append(data, e.Cell, e.Rank, int(e.Attr), e.Tag)
	}
	return data
}

func decodeImports(data []int) ([]transfer.ImportEntry, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("import encoding has length %d", len(data))
	}
	list := make([]transfer.ImportEntry, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		list = append(list, transfer.ImportEntry{
			Cell: data[i], Rank: data[i+1], Attr: transfer.Attribute(data[i+2]), Tag: data[i+3]})
	}
	return list, nil
}
