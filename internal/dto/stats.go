package dto

// StatsExportQuery selects the export rendering.
type StatsExportQuery struct {
	Format string `form:"format"`
}

// PageQuery is shared by paginated staff queues.
type PageQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"pageSize"`
}
