// Package report builds campaign reports from conversation trackers: a
// JSON summary for the API and an Excel workbook for download.
package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"recruit-agent/internal/domain"
)

// TrackerLister is the persistence surface a report reads from.
type TrackerLister interface {
	List(ctx context.Context, kind domain.CampaignKind, orgID int64) ([]*domain.Tracker, error)
}

// Row is one tracker summarized for the report.
type Row struct {
	TargetIdentity string     `json:"targetIdentity"`
	Status         string     `json:"status"`
	Decision       *string    `json:"decision,omitempty"`
	MessageCount   int        `json:"messageCount"`
	StartedAt      time.Time  `json:"startedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	LastMessage    string     `json:"lastMessage,omitempty"`
	LastMessageAt  *time.Time `json:"lastMessageAt,omitempty"`
}

// Report is the JSON report for one campaign and organization.
type Report struct {
	Campaign    domain.CampaignKind `json:"campaign"`
	OrgID       int64               `json:"orgId"`
	GeneratedAt time.Time           `json:"generatedAt"`
	Total       int                 `json:"total"`
	Completed   int                 `json:"completed"`
	InProgress  int                 `json:"inProgress"`
	Initiated   int                 `json:"initiated"`
	Decisions   map[string]int      `json:"decisions"`
	Rows        []Row               `json:"rows"`
}

// Builder assembles reports.
type Builder struct {
	trackers TrackerLister
	now      func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(trackers TrackerLister) (*Builder, error) {
	if trackers == nil {
		return nil, errors.New("report: tracker lister must not be nil")
	}
	return &Builder{trackers: trackers, now: time.Now}, nil
}

// Build summarizes every tracker of a campaign for one organization.
func (b *Builder) Build(ctx context.Context, kind domain.CampaignKind, orgID int64) (Report, error) {
	trackers, err := b.trackers.List(ctx, kind, orgID)
	if err != nil {
		return Report{}, fmt.Errorf("report: list trackers: %w", err)
	}

	rep := Report{
		Campaign:    kind,
		OrgID:       orgID,
		GeneratedAt: b.now().UTC(),
		Total:       len(trackers),
		Decisions:   map[string]int{},
		Rows:        make([]Row, 0, len(trackers)),
	}
	for _, t := range trackers {
		switch t.Status {
		case domain.StatusCompleted:
			rep.Completed++
		case domain.StatusInProgress:
			rep.InProgress++
		case domain.StatusInitiated:
			rep.Initiated++
		}
		if t.Decision != nil {
			rep.Decisions[*t.Decision]++
		}
		row := Row{
			TargetIdentity: t.TargetIdentity,
			Status:         string(t.Status),
			Decision:       t.Decision,
			MessageCount:   t.MessageCount,
			StartedAt:      t.CreatedAt,
			UpdatedAt:      t.UpdatedAt,
		}
		if n := len(t.Log); n > 0 {
			last := t.Log[n-1]
			row.LastMessage = last.Message
			ts := last.Timestamp
			row.LastMessageAt = &ts
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep, nil
}

// WriteExcel renders the report as an xlsx workbook: a summary sheet plus
// one row per conversation.
func (b *Builder) WriteExcel(ctx context.Context, kind domain.CampaignKind, orgID int64, w io.Writer) error {
	rep, err := b.Build(ctx, kind, orgID)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "Summary"
	conversationsSheet := "Conversations"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(conversationsSheet)

	if err := writeSummarySheet(f, summarySheet, rep); err != nil {
		return fmt.Errorf("report: summary sheet: %w", err)
	}
	if err := writeConversationsSheet(f, conversationsSheet, rep); err != nil {
		return fmt.Errorf("report: conversations sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write workbook: %w", err)
	}
	return nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
}

func writeSummarySheet(f *excelize.File, sheet string, rep Report) error {
	f.SetColWidth(sheet, "A", "A", 25)
	f.SetColWidth(sheet, "B", "B", 40)

	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	row := 1
	f.SetCellValue(sheet, fmt.Sprintf("A%d", row), "Campaign Report")
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row), header)
	f.MergeCell(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("B%d", row))
	row += 2

	write := func(label string, value any) {
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), label)
		f.SetCellStyle(sheet, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), labelStyle)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), value)
		row++
	}
	write("Campaign:", string(rep.Campaign))
	write("Organization:", rep.OrgID)
	write("Generated:", rep.GeneratedAt.Format("2006-01-02 15:04:05"))
	write("Total Conversations:", rep.Total)
	write("Completed:", rep.Completed)
	write("In Progress:", rep.InProgress)
	write("Initiated:", rep.Initiated)
	for decision, count := range rep.Decisions {
		write(fmt.Sprintf("Decision %q:", decision), count)
	}
	return nil
}

func writeConversationsSheet(f *excelize.File, sheet string, rep Report) error {
	widths := []float64{35, 14, 16, 10, 20, 20, 60}
	for i, w := range widths {
		col := string(rune('A' + i))
		f.SetColWidth(sheet, col, col, w)
	}

	header, err := headerStyle(f)
	if err != nil {
		return err
	}
	headers := []string{"Target", "Status", "Decision", "Messages", "Started", "Updated", "Last Message"}
	for col, h := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+col)))
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, header)
	}

	for i, r := range rep.Rows {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.TargetIdentity)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.Status)
		decision := ""
		if r.Decision != nil {
			decision = *r.Decision
		}
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), decision)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.MessageCount)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.StartedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.UpdatedAt.Format("2006-01-02 15:04"))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.LastMessage)
	}

	if len(rep.Rows) > 0 {
		f.AutoFilter(sheet, fmt.Sprintf("A1:G%d", len(rep.Rows)+1), []excelize.AutoFilterOptions{})
	}
	f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return nil
}
