package datastore

// Mutation is a single write statement produced when a unit of work commits
// a staged entry.
type Mutation interface{ isMutation() }

// Insert writes one row. Returning names columns generated by the store
// that should be read back, typically an auto-increment key.
type Insert struct {
	Values    map[string]any
	Returning []string
}

func (Insert) isMutation() {}

// WithReturning returns a copy that reads cols back after the insert.
func (m Insert) WithReturning(cols ...string) Insert {
	m.Returning = append([]string(nil), cols...)
	return m
}

// Update overwrites the Set columns of every row matching Where.
type Update struct {
	Set   map[string]any
	Where Node
}

func (Update) isMutation() {}

// Delete removes every row matching Where.
type Delete struct {
	Where Node
}

func (Delete) isMutation() {}

func NewInsert(values map[string]any) Insert { return Insert{Values: values} }

func NewUpdate(set map[string]any, where Node) Update { return Update{Set: set, Where: where} }

func NewDelete(where Node) Delete { return Delete{Where: where} }
