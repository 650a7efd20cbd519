package redisx

import "time"

const (
	// Nomor struk harian: receipt:seq:{prefix}:{YYYYMMDD} -> counter INCR
	KeyReceiptSeq = "receipt:seq:%s:%s"

	// Dedup event processing: dedup:{service}:{id} (id = event_id)
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLReceiptSeq = 48 * time.Hour
	TTLDedup      = 48 * time.Hour
)
