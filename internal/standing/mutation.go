package standing

// CellAddress is a zero-based sheet cell position.
type CellAddress struct {
	Row    int `yaml:"row" json:"row"`
	Column int `yaml:"column" json:"column"`
}

// CellMutation sets the note of one cell.
// An empty Note clears the cell's note.
type CellMutation struct {
	SheetID int64  `json:"sheet_id"`
	Row     int    `json:"row"`
	Column  int    `json:"column"`
	Note    string `json:"note"`
}

// BuildMutations maps records to note updates: record k goes to
// (base.Row+k, base.Column). Order is preserved.
func BuildMutations(records []Record, base CellAddress, sheetID int64) ([]CellMutation, error) {
	if len(records) == 0 {
		return nil, ErrNoMutations
	}

	muts := make([]CellMutation, len(records))
	for k, rec := range records {
		muts[k] = CellMutation{
			SheetID: sheetID,
			Row:     base.Row + k,
			Column:  base.Column,
			Note:    rec.Note(),
		}
	}
	return muts, nil
}
