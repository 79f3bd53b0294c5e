package render

// stringTable interns frame names for the JSON rendering.
type stringTable struct {
	index   map[string]int
	strings []string
}

func NewStringTable() *stringTable {
	return &stringTable{index: make(map[string]int)}
}

func (t *stringTable) Add(str string) int {
	if id, ok := t.index[str]; ok {
		return id
	}
	id := len(t.strings)
	t.index[str] = id
	t.strings = append(t.strings, str)
	return id
}

func (t *stringTable) Table() []string {
	return t.strings
}
