package parsermanager_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/bus"
	"github.com/hdbg/pjatkbot-go/internal/parsermanager"
	"github.com/hdbg/pjatkbot-go/internal/portal"
	"github.com/hdbg/pjatkbot-go/internal/reconciler"
	"github.com/hdbg/pjatkbot-go/internal/store/memstore"
)

const initialPage = `<html><body><input type="hidden" id="__VIEWSTATE" value="v0"/></body></html>`

const dayTableFragment = `1234
<table id="ZajeciaTable"><tbody>
<tr><td id="1;z" style="background-color:#FFFFFF;">Algorithms</td></tr>
</tbody></table>
1|hiddenField|__VIEWSTATE|v1|`

func newTestServer(t *testing.T, dateLabel string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write([]byte(initialPage))
			return
		}
		r.ParseForm()
		switch r.Form.Get("__EVENTTARGET") {
		case "DataPicker":
			w.Write([]byte(dayTableFragment))
		case "RadToolTipManager1RTMPanel":
			w.Write([]byte(`1234
<div>
<span id="ctl06_NazwaPrzedmiotyLabel">Algorithms</span>
<span id="ctl06_KodPrzedmiotuLabel">ALG101</span>
<span id="ctl06_TypZajecLabel">Wykład</span>
<span id="ctl06_GrupyLabel">WIs I.1</span>
<span id="ctl06_DydaktycyLabel">J. Kowalski</span>
<span id="ctl06_SalaLabel">101</span>
<span id="ctl06_DataZajecLabel">` + dateLabel + `</span>
<span id="ctl06_GodzRozpLabel">09:00:00</span>
<span id="ctl06_GodzZakonLabel">10:30:00</span>
</div>
1|hiddenField|__VIEWSTATE|v2|`))
		default:
			t.Fatalf("unexpected __EVENTTARGET %q", r.Form.Get("__EVENTTARGET"))
		}
	}))
}

func TestTickParsesTodayOnFirstRun(t *testing.T) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	srv := newTestServer(t, today.Format("02.01.2006"))
	defer srv.Close()

	client, err := portal.New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("portal.New: %v", err)
	}

	ms := memstore.New()
	updates := bus.New[bus.UpdateEvent](8)
	m, err := parsermanager.New(parsermanager.Config{
		Client:     client,
		Reconciler: reconciler.New(ms),
		Store:      ms,
		Updates:    updates,
		DaysAhead:  7,
	})
	if err != nil {
		t.Fatalf("parsermanager.New: %v", err)
	}

	if err := m.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}

	select {
	case ev := <-updates.Recv():
		if ev.Kind != bus.UpdateClassAdded {
			t.Fatalf("expected UpdateClassAdded, got %v", ev.Kind)
		}
		if ev.Class.Class.Name != "Algorithms" {
			t.Fatalf("unexpected class: %+v", ev.Class)
		}
	default:
		t.Fatal("expected an update event on first tick")
	}

	cursor, err := ms.Cursor(context.Background(), "pjatk")
	if err != nil {
		t.Fatalf("Cursor: %v", err)
	}
	if !cursor.LastDayParsed.Equal(today) {
		t.Fatalf("LastDayParsed = %v, want %v", cursor.LastDayParsed, today)
	}
}
