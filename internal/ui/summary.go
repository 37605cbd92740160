package ui

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SummaryRow 汇总表中的一行
type SummaryRow struct {
	File     string
	Success  bool
	Entries  int
	Duration string
	Message  string
}

// RenderSummary 渲染批处理结果表
func RenderSummary(rows []SummaryRow) string {
	if len(rows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "文件", "状态", "条目", "耗时", "信息"})

	succeeded := 0
	for i, row := range rows {
		status := "失败"
		if row.Success {
			status = "成功"
			succeeded++
		}
		tw.AppendRow(table.Row{i + 1, row.File, status, row.Entries, row.Duration, row.Message})
	}
	tw.AppendFooter(table.Row{"", "合计", fmt.Sprintf("%d/%d", succeeded, len(rows)), "", "", ""})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, WidthMax: 60},
	})

	return tw.Render()
}
