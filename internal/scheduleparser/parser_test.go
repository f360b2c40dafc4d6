package scheduleparser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hdbg/pjatkbot-go/internal/model"
	"github.com/hdbg/pjatkbot-go/internal/portal"
)

const dayTableFragment = `1234
<table id="ZajeciaTable"><tbody>
<tr><td id="1;z" style="background-color:#FFFFFF;">Algorithms</td></tr>
</tbody></table>
1|hiddenField|__VIEWSTATE|v1|`

const onlineDayTableFragment = `1234
<table id="ZajeciaTable"><tbody>
<tr><td id="2;z" style="background-color:#3AEB34;">Networking</td></tr>
</tbody></table>
1|hiddenField|__VIEWSTATE|v1|`

const detailFragment = `1234
<div>
<span id="ctl06_NazwaPrzedmiotyLabel">Algorithms</span>
<span id="ctl06_KodPrzedmiotuLabel">ALG101</span>
<span id="ctl06_TypZajecLabel">Wykład</span>
<span id="ctl06_GrupyLabel">WIs I.1, WIs I.2</span>
<span id="ctl06_DydaktycyLabel">J. Kowalski</span>
<span id="ctl06_SalaLabel">101</span>
<span id="ctl06_DataZajecLabel">02.03.2026</span>
<span id="ctl06_GodzRozpLabel">09:00:00</span>
<span id="ctl06_GodzZakonLabel">10:30:00</span>
</div>
1|hiddenField|__VIEWSTATE|v2|`

func TestParseDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.Form.Get("__EVENTTARGET") {
		case "DataPicker":
			w.Write([]byte(dayTableFragment))
		case detailEventTarget:
			clientState := r.Form.Get("RadToolTipManager1_ClientState")
			if !strings.Contains(clientState, `"AjaxTargetControl":"1;z"`) || !strings.Contains(clientState, `"Value":"1;z"`) {
				t.Fatalf("RadToolTipManager1_ClientState = %q, want the cell id embedded as both AjaxTargetControl and Value", clientState)
			}
			w.Write([]byte(detailFragment))
		default:
			t.Fatalf("unexpected __EVENTTARGET %q", r.Form.Get("__EVENTTARGET"))
		}
	}))
	defer srv.Close()

	client, err := portal.New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("portal.New() error: %v", err)
	}

	p, err := New(client)
	if err != nil {
		t.Fatalf("scheduleparser.New() error: %v", err)
	}

	classes, err := p.ParseDay(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ParseDay() error: %v", err)
	}

	if len(classes) != 1 {
		t.Fatalf("len(classes) = %d, want 1", len(classes))
	}
	got := classes[0]
	if got.Name != "Algorithms" || got.Code != "ALG101" {
		t.Errorf("unexpected class: %+v", got)
	}
	if got.Kind != model.KindLecture {
		t.Errorf("Kind = %v, want %v", got.Kind, model.KindLecture)
	}
	if len(got.Groups) != 2 {
		t.Errorf("Groups = %v, want 2 entries", got.Groups)
	}
	if got.Place.Kind != model.PlaceOnSite || got.Place.Room != "101" {
		t.Errorf("Place = %+v, want on-site room 101", got.Place)
	}
}

// TestParseDayDetectsOnlineClass exercises the full pipeline with a cell
// whose overview-table style carries the portal's online color, proving
// the online/on-site decision is read from that cell and not from the
// detail view's room label (which never carries it).
func TestParseDayDetectsOnlineClass(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.Form.Get("__EVENTTARGET") {
		case "DataPicker":
			w.Write([]byte(onlineDayTableFragment))
		case detailEventTarget:
			clientState := r.Form.Get("RadToolTipManager1_ClientState")
			if !strings.Contains(clientState, `"AjaxTargetControl":"2;z"`) {
				t.Fatalf("RadToolTipManager1_ClientState = %q, want cell id 2;z", clientState)
			}
			w.Write([]byte(detailFragment))
		default:
			t.Fatalf("unexpected __EVENTTARGET %q", r.Form.Get("__EVENTTARGET"))
		}
	}))
	defer srv.Close()

	client, err := portal.New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("portal.New() error: %v", err)
	}
	p, err := New(client)
	if err != nil {
		t.Fatalf("scheduleparser.New() error: %v", err)
	}

	classes, err := p.ParseDay(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ParseDay() error: %v", err)
	}
	if len(classes) != 1 {
		t.Fatalf("len(classes) = %d, want 1", len(classes))
	}
	if classes[0].Place.Kind != model.PlaceOnline {
		t.Errorf("Place = %+v, want online", classes[0].Place)
	}
}

func TestParseDaySkipsReservations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		switch r.Form.Get("__EVENTTARGET") {
		case "DataPicker":
			w.Write([]byte(dayTableFragment))
		case detailEventTarget:
			w.Write([]byte(`1234
<div><span id="ctl06_TytulRezerwacjiLabel">Room booking</span></div>
1|hiddenField|__VIEWSTATE|v2|`))
		}
	}))
	defer srv.Close()

	client, err := portal.New(srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("portal.New() error: %v", err)
	}
	p, err := New(client)
	if err != nil {
		t.Fatalf("scheduleparser.New() error: %v", err)
	}

	classes, err := p.ParseDay(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ParseDay() error: %v", err)
	}
	if len(classes) != 0 {
		t.Errorf("expected reservations to be filtered out, got %d classes", len(classes))
	}
}
