package pagination

// Batches splits items into consecutive chunks of at most size elements.
// The chunks share the backing array of items.
func Batches[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}

	batches := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}
	return batches
}
