package engine

import "github.com/thisisjab/logtable/entity"

// MaxBatchSize is the largest batch a table store accepts in one atomic write.
const MaxBatchSize = 100

// groupBatches walks entities in order and emits consecutive runs that share
// a partition key, cutting a run early once it holds max entities. Every
// emitted batch is non-empty, single-partition and at most max long. Batches
// alias the entities slice.
func groupBatches(entities []entity.EncodedEntity, max int, emit func(partitionKey string, batch []entity.EncodedEntity)) {
	if max <= 0 {
		max = MaxBatchSize
	}

	start := 0
	cursor := ""
	for i, e := range entities {
		if i > start && (e.PartitionKey != cursor || i-start >= max) {
			emit(cursor, entities[start:i:i])
			start = i
		}
		if i == start {
			cursor = e.PartitionKey
		}
	}

	if start < len(entities) {
		emit(cursor, entities[start:])
	}
}
