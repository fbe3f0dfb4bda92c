package plan

import "fmt"

// Assignment maps each worker to the contiguous range of connection indices
// it drives.
type Assignment struct {
	Workers [][]int
}

// Assign partitions connections across threads. Every worker gets either
// ceil(C/T) or floor(C/T) connections; the first C mod T workers take the
// larger share. With more threads than connections the trailing workers get
// none.
func Assign(connections, threads int) (Assignment, error) {
	if threads < 1 {
		return Assignment{}, fmt.Errorf("threads must be >= 1, got %d", threads)
	}
	if connections < 0 {
		return Assignment{}, fmt.Errorf("connections must be >= 0, got %d", connections)
	}

	per := connections / threads
	remainder := connections % threads

	a := Assignment{Workers: make([][]int, threads)}
	next := 0
	for w := 0; w < threads; w++ {
		n := per
		if w < remainder {
			n++
		}
		ids := make([]int, n)
		for i := range ids {
			ids[i] = next
			next++
		}
		a.Workers[w] = ids
	}
	return a, nil
}

// Connections returns the total number of connections in the assignment.
func (a Assignment) Connections() int {
	total := 0
	for _, ids := range a.Workers {
		total += len(ids)
	}
	return total
}
