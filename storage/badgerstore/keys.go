package badgerstore

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for partition data. Every key embeds the tenant id, so one
// database can hold many tenants without their entries interleaving.
const (
	descriptorPrefix = "pdesc"
	vectorsPrefix    = "pvec"
	documentPrefix   = "pdoc"
)

// makeDescriptorKey generates the key for a tenant's partition descriptor
// (dimension + count).
func makeDescriptorKey(tenantID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", descriptorPrefix, tenantID))
}

// makeVectorsKey generates the key for a tenant's dense vector payload.
func makeVectorsKey(tenantID string) []byte {
	return []byte(fmt.Sprintf("%s:%s", vectorsPrefix, tenantID))
}

// makeDocumentKey generates the key for metadata record i of a tenant.
// The position is encoded BigEndian so lexicographic iteration yields
// records in insertion order.
func makeDocumentKey(tenantID string, i int) []byte {
	prefix := makeDocumentPrefix(tenantID)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(i))
	return buf
}

// makeDocumentPrefix generates the iteration prefix for a tenant's records.
func makeDocumentPrefix(tenantID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", documentPrefix, tenantID))
}
