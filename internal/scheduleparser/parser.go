// Package scheduleparser drives a portal.Client through one calendar
// day's worth of postbacks and turns the resulting HTML into
// model.Class values: one postback to land on the day, then one
// detail-view postback per class cell found in that day's table.
package scheduleparser

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/portal"
)

// Parser scrapes one day at a time from a single portal.Client. Like the
// client it wraps, a Parser is not safe for concurrent use.
type Parser struct {
	client *portal.Client
	loc    *time.Location
}

// New creates a Parser. The client is expected to already have
// performed its Initial postback (ParserManager owns that sequencing so
// it can also recover the conversation after a portal error).
func New(client *portal.Client) (*Parser, error) {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		return nil, fmt.Errorf("scheduleparser: loading Europe/Warsaw: %w", err)
	}
	return &Parser{client: client, loc: loc}, nil
}

// ParseDay navigates the portal's date picker to day and returns every
// real class (reservations are filtered out) scheduled on it.
func (p *Parser) ParseDay(ctx context.Context, day time.Time) ([]model.Class, error) {
	dayStr := day.In(p.loc).Format(dateLayout)

	doc, err := p.client.Event(ctx, "DataPicker", dayStr, true, dayPickerOverrides(dayStr))
	if err != nil {
		return nil, fmt.Errorf("scheduleparser: navigating to %s: %w", dayStr, err)
	}

	cells := findClassCells(doc)

	classes := make([]model.Class, 0, len(cells))
	for _, cell := range cells {
		// Every cell's detail view is fetched through the same tooltip
		// manager control; the cell being asked about is identified by
		// the AjaxTargetControl/Value pair in detailOverrides, not by
		// __EVENTTARGET.
		detailDoc, err := p.client.Event(ctx, detailEventTarget, "undefined", true, detailOverrides(cell.ID))
		if err != nil {
			return nil, fmt.Errorf("scheduleparser: opening detail for %s: %w", cell.ID, err)
		}

		if isReservation(detailDoc) {
			continue
		}

		class, err := p.parseDetail(detailDoc, cell.Style)
		if err != nil {
			return nil, fmt.Errorf("scheduleparser: parsing detail for %s: %w", cell.ID, err)
		}
		classes = append(classes, class)
	}

	return classes, nil
}

// classCell is one class's overview-table cell: its DOM id, which
// identifies it to the tooltip manager postback that fetches its
// detail view, and its inline style, which is the only place the
// portal marks a class as held online (see deductPlace).
type classCell struct {
	ID    string
	Style string
}

// findClassCells returns every class cell in the day's table, in
// document order.
func findClassCells(doc *goquery.Document) []classCell {
	var cells []classCell
	doc.Find(classTableSelector).Find(classItemSelector).Each(func(_ int, sel *goquery.Selection) {
		id, ok := sel.Attr("id")
		if !ok {
			return
		}
		style, _ := sel.Attr("style")
		cells = append(cells, classCell{ID: id, Style: style})
	})
	return cells
}

func isReservation(doc *goquery.Document) bool {
	return doc.Find(reservationTitle).Length() > 0
}

func (p *Parser) parseDetail(doc *goquery.Document, cellStyle string) (model.Class, error) {
	name := text(doc, detailNameSelector)
	code := text(doc, detailCodeSelector)
	lecturer := text(doc, detailLecturerSelector)

	kind, err := deductKind(text(doc, detailKindSelector))
	if err != nil {
		return model.Class{}, err
	}

	groups := deductGroups(text(doc, detailGroupsSelector))

	rng, err := deductRange(
		text(doc, detailDateSelector),
		text(doc, detailStartSelector),
		text(doc, detailEndSelector),
		p.loc,
	)
	if err != nil {
		return model.Class{}, err
	}

	// The detail view's own room label never carries the online/on-site
	// background color; only the overview table's cell does (see
	// deductPlace), so the cell's style is threaded through from
	// findClassCells rather than read from doc here.
	place := deductPlace(text(doc, detailRoomSelector), cellStyle)

	return model.Class{
		Name:     name,
		Code:     code,
		Kind:     kind,
		Lecturer: lecturer,
		Range:    rng,
		Place:    place,
		Groups:   groups,
	}, nil
}

func text(doc *goquery.Document, selector string) string {
	return doc.Find(selector).First().Text()
}
