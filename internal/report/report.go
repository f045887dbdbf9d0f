package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"accountops/internal/engine"
)

// Line 为报告中的一行，对应一个账户。
type Line struct {
	AccountID string
	Status    engine.Status
	Text      string
	Value     decimal.NullDecimal
	Flagged   bool
	Fields    map[string]string
}

// Report 为一次批量执行的结果，行顺序与账户加载顺序一致。
type Report struct {
	Title        string
	NumericField string
	Lines        []Line
	// Total 为成功行有效数值之和，仅在 NumericField 非空时有效。
	Total     decimal.NullDecimal
	Succeeded int
	Failed    int
}

// Build 根据有序结果生成报告。
func Build(title, numericField string, outcomes []engine.Outcome) Report {
	r := Report{
		Title:        title,
		NumericField: numericField,
		Lines:        make([]Line, 0, len(outcomes)),
	}

	total := decimal.Zero
	for _, o := range outcomes {
		line := Line{
			AccountID: o.AccountID,
			Status:    o.Status,
			Fields:    o.Result.Fields,
		}
		if o.Succeeded() {
			r.Succeeded++
			line.Text = o.Result.Display
			line.Value = o.Result.Value
			line.Flagged = o.Result.Flagged
			if o.Result.Value.Valid {
				total = total.Add(o.Result.Value.Decimal)
			}
		} else {
			r.Failed++
			line.Text = "错误: " + o.Message
		}
		r.Lines = append(r.Lines, line)
	}

	if numericField != "" {
		r.Total = decimal.NullDecimal{Decimal: total, Valid: true}
	}
	return r
}

// Human 返回带终端颜色的文本：成功为绿色，失败为红色，标记行为黄色。
func (r Report) Human() string {
	var b strings.Builder
	r.render(&b, newPalette(true))
	return b.String()
}

// Plain 返回不含任何格式控制符的文本，与 Human 内容一致。
func (r Report) Plain() string {
	var b strings.Builder
	r.render(&b, newPalette(false))
	return b.String()
}

// WriteTo 将纯文本报告写入 w。
func (r Report) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, r.Plain())
	return int64(n), err
}

type palette struct {
	success func(a ...interface{}) string
	failure func(a ...interface{}) string
	flagged func(a ...interface{}) string
	header  func(a ...interface{}) string
}

func newPalette(colored bool) palette {
	if !colored {
		plain := fmt.Sprint
		return palette{success: plain, failure: plain, flagged: plain, header: plain}
	}
	mk := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		c.EnableColor()
		return c.SprintFunc()
	}
	return palette{
		success: mk(color.FgGreen),
		failure: mk(color.FgRed),
		flagged: mk(color.FgYellow),
		header:  mk(color.Bold),
	}
}

func (r Report) render(b *strings.Builder, p palette) {
	b.WriteString(p.header(fmt.Sprintf("===== %s =====", r.Title)))
	b.WriteByte('\n')

	width := 0
	for _, line := range r.Lines {
		width = max(width, len(line.AccountID))
	}

	for i, line := range r.Lines {
		text := fmt.Sprintf("[%d] %-*s  %s", i+1, width, line.AccountID, line.Text)
		switch {
		case line.Status != engine.StatusSuccess:
			text = p.failure(text)
		case line.Flagged:
			text = p.flagged(text)
		default:
			text = p.success(text)
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}

	b.WriteString(strings.Repeat("-", 40))
	b.WriteByte('\n')
	if r.Total.Valid {
		b.WriteString(p.header(fmt.Sprintf("合计 %s: %s", r.NumericField, r.Total.Decimal.String())))
		b.WriteByte('\n')
	}
	fmt.Fprintf(b, "成功: %d  失败: %d  共: %d\n", r.Succeeded, r.Failed, len(r.Lines))
}
