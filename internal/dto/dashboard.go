package dto

// AdminDashboardResponse aggregates topline lead counts for admins.
type AdminDashboardResponse struct {
	TotalLeads      int               `json:"total_leads"`
	PendingApproval int               `json:"pending_approval"`
	ActiveLeads     int               `json:"active_leads"`
	PoolLeads       int               `json:"pool_leads"`
	Converted       int               `json:"converted"`
	Cancelled       int               `json:"cancelled"`
	StageFunnel     []FunnelStage     `json:"stage_funnel"`
	UserPerformance []UserPerformance `json:"user_performance"`
}

// FunnelStage is one slice of the sales funnel.
type FunnelStage struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// UserPerformance mirrors the per-distributor funnel counts. Counts
// are funnel-inclusive: a CONVERTED lead also counts toward
// DemoShowed, QuotationSent and Negotiation.
type UserPerformance struct {
	UserID        string `json:"user_id"`
	FullName      string `json:"full_name"`
	Generated     int    `json:"generated"`
	DemoShowed    int    `json:"demo_showed"`
	QuotationSent int    `json:"quotation_sent"`
	Negotiation   int    `json:"negotiation"`
	Converted     int    `json:"converted"`
	Cancelled     int    `json:"cancelled"`
	Expired       int    `json:"expired"`
}

// UserDashboardResponse summarises one distributor's own funnel.
type UserDashboardResponse struct {
	TotalLeads  int           `json:"total_leads"`
	DemosShowed int           `json:"demos_showed"`
	QuotesSent  int           `json:"quotes_sent"`
	Converted   int           `json:"converted"`
	Failed      int           `json:"failed"`
	StageFunnel []FunnelStage `json:"stage_funnel"`
}
