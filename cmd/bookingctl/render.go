package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/iliyamo/showtime-booking/internal/model"
	"github.com/iliyamo/showtime-booking/internal/sweeper"
)

func newTable(w io.Writer, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(header)
	t.SetStyle(table.StyleLight)
	return t
}

func renderReport(w io.Writer, r sweeper.Report) {
	t := newTable(w, table.Row{"Scanned", "Released", "Expired", "Failed"})
	t.AppendRow(table.Row{r.Scanned, r.Released, r.Expired, r.Failed})
	t.Render()
}

func renderSeats(w io.Writer, seats []model.Seat) {
	t := newTable(w, table.Row{"ID", "Seat", "Status", "Booking"})
	counts := map[model.SeatStatus]int{}
	for _, s := range seats {
		booking := "-"
		if s.BookingID != nil {
			booking = fmt.Sprint(*s.BookingID)
		}
		t.AppendRow(table.Row{s.ID, s.Code(), s.Status, booking})
		counts[s.Status]++
	}
	t.AppendFooter(table.Row{"", len(seats), fmt.Sprintf("%d available", counts[model.SeatAvailable]), ""})
	t.Render()
}

func renderBookings(w io.Writer, list []model.Booking) {
	t := newTable(w, table.Row{"ID", "User", "Seats", "Total", "Status", "Created"})
	for _, b := range list {
		t.AppendRow(table.Row{b.ID, b.UserID, strings.Join(b.Seats, ", "), cents(b.TotalPriceCents), b.PaymentStatus, b.CreatedAt.Format(time.RFC3339)})
	}
	t.Render()
}

func renderHistory(w io.Writer, h model.BookingHistory) {
	t := newTable(w, table.Row{"Status", "ID", "Showtime", "Seats", "Total"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 1, AutoMerge: true}})
	groups := []struct {
		status model.PaymentStatus
		list   []model.Booking
	}{
		{model.PaymentPending, h.Pending},
		{model.PaymentCompleted, h.Completed},
		{model.PaymentCanceled, h.Canceled},
	}
	for _, g := range groups {
		for _, b := range g.list {
			t.AppendRow(table.Row{g.status, b.ID, b.ShowtimeID, strings.Join(b.Seats, ", "), cents(b.TotalPriceCents)})
		}
	}
	t.Render()
}

func renderLeases(w io.Writer, rows []leaseRow, now time.Time) {
	t := newTable(w, table.Row{"Key", "Phase", "Hold", "Expires in"})
	for _, r := range rows {
		if r.Err != nil {
			t.AppendRow(table.Row{r.Key, "malformed", "", r.Err.Error()})
			continue
		}
		left := "expired"
		if r.Lease.ExpiresAt.After(now) {
			left = r.Lease.ExpiresAt.Sub(now).Truncate(time.Second).String()
		}
		t.AppendRow(table.Row{r.Key, r.Lease.Phase, r.Lease.HoldID, left})
	}
	t.Render()
}

func cents(c int64) string {
	return fmt.Sprintf("%d.%02d", c/100, c%100)
}
