package scheduleparser

import "fmt"

// DOM selectors the portal's generated markup is keyed to. These are
// exact matches against the live page — ASP.NET WebForms assigns these
// ids from the control tree, so they only change if the portal's page
// layout changes.
const (
	classTableSelector = "#ZajeciaTable > tbody"
	classItemSelector  = `td[id$=";z"]`
	reservationTitle   = "#ctl06_TytulRezerwacjiLabel"

	// detailEventTarget is the __EVENTTARGET every class cell's detail
	// postback uses — the portal's single shared tooltip manager
	// control, not anything specific to the cell being asked about.
	// Which cell is identified by detailOverrides' ClientState payload.
	detailEventTarget = "RadToolTipManager1RTMPanel"

	detailNameSelector     = "#ctl06_NazwaPrzedmiotyLabel"
	detailCodeSelector     = "#ctl06_KodPrzedmiotuLabel"
	detailKindSelector     = "#ctl06_TypZajecLabel"
	detailGroupsSelector   = "#ctl06_GrupyLabel"
	detailLecturerSelector = "#ctl06_DydaktycyLabel"
	detailRoomSelector     = "#ctl06_SalaLabel"
	detailDateSelector     = "#ctl06_DataZajecLabel"
	detailStartSelector    = "#ctl06_GodzRozpLabel"
	detailEndSelector      = "#ctl06_GodzZakonLabel"
)

// onlineColorSubstr is the inline style fragment the portal uses to mark
// a class's overview-table cell as "held online" instead of naming a
// physical room.
const onlineColorSubstr = "background-color:#3AEB34;"

// dateLayout / timeLayout match the portal's Polish date/time rendering.
const (
	dateLayout = "02.01.2006"
	timeLayout = "15:04:05"
)

// dayPickerOverrides builds the one-shot form fields the portal expects
// on a postback that navigates its date picker to day. The
// ClientState envelope shape is the date picker control's serialized
// selection; the portal ignores everything else in it but rejects a
// malformed envelope outright, so the shape is reproduced exactly.
func dayPickerOverrides(day string) map[string]string {
	return map[string]string{
		"DataPicker":                            day,
		"DataPicker$dateInput":                  day,
		"DataPicker_dateInput_ClientState":       dateInputClientState(day),
		"DataPicker_ClientState":                 datePickerClientState(day),
	}
}

func dateInputClientState(day string) string {
	return `{"enabled":true,"emptyMessage":"","validationText":"` + day +
		`-00-00-00","valueAsString":"` + day + `-00-00-00","minDateStr":"1900-01-01-00-00-00","maxDateStr":"2099-12-31-00-00-00","lastSetTextBoxValue":"` + day + `"}`
}

func datePickerClientState(day string) string {
	return `{"minDateStr":"1900-01-01-00-00-00","maxDateStr":"2099-12-31-00-00-00","selectedDates":["` + day + `-00-00-00"]}`
}

// detailOverrides builds the one-shot field a postback into one class
// cell's detail view needs: the tooltip manager's client state envelope
// naming cellID as both the target control and the value, matching what
// the portal's own client script sends when a user clicks that cell.
func detailOverrides(cellID string) map[string]string {
	return map[string]string{
		"RadToolTipManager1_ClientState": fmt.Sprintf(`{"AjaxTargetControl":%q,"Value":%q}`, cellID, cellID),
	}
}
