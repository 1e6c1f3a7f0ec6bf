package datastore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// recordingQuery logs every builder call it receives.
type recordingQuery struct {
	calls *[]string
}

func newRecordingQuery() (recordingQuery, *[]string) {
	calls := &[]string{}
	return recordingQuery{calls: calls}, calls
}

func (q recordingQuery) record(format string, args ...any) Query[specOrder] {
	*q.calls = append(*q.calls, fmt.Sprintf(format, args...))
	return q
}

func (q recordingQuery) Where(n Node) Query[specOrder] { return q.record("where %v", n) }
func (q recordingQuery) Include(nav Navigation[specOrder]) Query[specOrder] {
	return q.record("include %s", nav.Path())
}
func (q recordingQuery) IncludePath(path string) Query[specOrder] {
	return q.record("path %s", path)
}
func (q recordingQuery) OrderBy(field string) Query[specOrder] { return q.record("asc %s", field) }
func (q recordingQuery) OrderByDescending(field string) Query[specOrder] {
	return q.record("desc %s", field)
}
func (q recordingQuery) Skip(n int) Query[specOrder] { return q.record("skip %d", n) }
func (q recordingQuery) Take(n int) Query[specOrder] { return q.record("take %d", n) }

func (q recordingQuery) List(context.Context) ([]specOrder, error) { return nil, nil }
func (q recordingQuery) First(context.Context) (*specOrder, error) { return nil, nil }
func (q recordingQuery) Count(context.Context) (int64, error) { return 0, nil }
func (q recordingQuery) Any(context.Context) (bool, error) { return false, nil }

func TestEvaluateAppliesStepsInOrder(t *testing.T) {
	q, calls := newRecordingQuery()
	spec := NewSpec[specOrder]().
		Paginate(20, 10).
		SortByDescending("created_at").
		IncludePath("Items.Product").
		Include(pathNav("Customer")).
		Where(Eq("status", "open"))

	Evaluate[specOrder](q, spec)

	assert.Equal(t, []string{
		"where {status eq open}",
		"include Customer",
		"path Items.Product",
		"desc created_at",
		"skip 20",
		"take 10",
	}, *calls)
}

func TestEvaluateAscendingWins(t *testing.T) {
	q, calls := newRecordingQuery()
	spec := NewSpec[specOrder]().SortByDescending("b").SortBy("a")

	Evaluate[specOrder](q, spec)

	assert.Equal(t, []string{"asc a"}, *calls)
}

func TestEvaluateIgnoresWindowWithoutPaging(t *testing.T) {
	q, calls := newRecordingQuery()
	spec := NewSpec[specOrder]().Paginate(5, 5).WithoutPaging()

	Evaluate[specOrder](q, spec)

	assert.Empty(t, *calls)
}

func TestEvaluateNilSpec(t *testing.T) {
	q, calls := newRecordingQuery()

	got := Evaluate[specOrder](q, nil)

	assert.Equal(t, q, got)
	assert.Empty(t, *calls)
}

func TestEvaluateEmptySpec(t *testing.T) {
	q, calls := newRecordingQuery()

	Evaluate[specOrder](q, NewSpec[specOrder]())

	assert.Empty(t, *calls)
}
