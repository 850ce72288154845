package controllers

// Common request types for HTTP controllers

// tenantReq names a tenant for create/checkpoint operations.
type tenantReq struct {
	Tenant string `json:"tenant"`
}

// subscribeMsg renarrows a live subscription from the client side.
type subscribeMsg struct {
	Type   string `json:"type"`
	Model  string `json:"model"`
	Filter string `json:"filter"`
}

// queueLeaseReq leases up to Max messages for a consumer.
type queueLeaseReq struct {
	Tenant   string `json:"tenant"`
	Queue    string `json:"queue"`
	Consumer string `json:"consumer"`
	Max      int    `json:"max"`
	LeaseMs  int64  `json:"leaseMs"`
}

// queueCompleteReq acknowledges leased sequences.
type queueCompleteReq struct {
	Tenant   string   `json:"tenant"`
	Queue    string   `json:"queue"`
	Consumer string   `json:"consumer"`
	Seqs     []uint64 `json:"seqs"`
}
