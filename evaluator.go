package datastore

// Evaluate applies spec to q and returns the composed query. Steps run in a
// fixed order: criteria, typed includes, path includes, ordering, then the
// paging window. Ascending order wins when both directions are set; Skip
// and Take are ignored unless paging is enabled. A nil spec returns q.
func Evaluate[T any](q Query[T], spec Specification[T]) Query[T] {
	if spec == nil {
		return q
	}

	if criteria := spec.Criteria(); criteria != nil {
		q = q.Where(criteria)
	}

	for _, nav := range spec.Includes() {
		q = q.Include(nav)
	}

	for _, path := range spec.IncludeStrings() {
		q = q.IncludePath(path)
	}

	if field := spec.OrderBy(); field != "" {
		q = q.OrderBy(field)
	} else if field := spec.OrderByDescending(); field != "" {
		q = q.OrderByDescending(field)
	}

	if spec.IsPagingEnabled() {
		q = q.Skip(spec.Skip()).Take(spec.Take())
	}

	return q
}
