package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autoparc/fleet-reservation/internal/ledger"
	"github.com/autoparc/fleet-reservation/internal/upload"
)

func newVehicleHandler(t *testing.T) *VehicleHandler {
	t.Helper()
	saver, err := upload.NewSaver(t.TempDir(), 1<<20)
	require.NoError(t, err)
	return NewVehicleHandler(ledger.New(ledger.NewMemoryStore()), saver)
}

// callForm runs handler fn with an urlencoded form body.
func callForm(t *testing.T, fn echo.HandlerFunc, method, target string, form url.Values, role string, params map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("email", "boss@parc.example")
	c.Set("role", role)
	for k, v := range params {
		c.SetParamNames(k)
		c.SetParamValues(v)
	}
	require.NoError(t, fn(c))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func registerForm(code string, total string) url.Values {
	return url.Values{
		"code":              {code},
		"designation":       {"Kangoo ZE"},
		"category":          {"Utilitaire"},
		"make":              {"Renault"},
		"model":             {"Kangoo"},
		"daily_price_cents": {"4500"},
		"fuel_type":         {"Electric"},
		"qty_total":         {total},
	}
}

func TestCreateVehicleEndpoint(t *testing.T) {
	h := newVehicleHandler(t)

	rec, envelope := callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "vehicle registered", envelope["message"])
	v := envelope["vehicle"].(map[string]any)
	assert.Equal(t, "VAN001", v["code"])
	assert.Equal(t, "Available", v["status"])
	assert.Equal(t, float64(3), v["qty_total"])
	assert.Equal(t, float64(3), v["qty_available"])
	assert.Equal(t, float64(4500), v["daily_price_cents"])
}

func TestCreateVehicleValidation(t *testing.T) {
	h := newVehicleHandler(t)

	rec, _ := callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "0"), "manager", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)
	rec, _ = callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateVehicleKeepsCounters(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)

	form := registerForm("VAN001", "")
	form.Set("designation", "Kangoo ZE phase 2")
	form.Set("qty_total", "99") // ignored; counters never move through updates
	rec, envelope := callForm(t, h.Update, http.MethodPut, "/v1/vehicles/VAN001", form, "manager",
		map[string]string{"code": "VAN001"})

	assert.Equal(t, http.StatusOK, rec.Code)
	v := envelope["vehicle"].(map[string]any)
	assert.Equal(t, "Kangoo ZE phase 2", v["designation"])
	assert.Equal(t, float64(3), v["qty_total"])
	assert.Equal(t, float64(3), v["qty_available"])
}

func TestDeleteVehicleEndpoint(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)

	rec, envelope := callForm(t, h.Delete, http.MethodDelete, "/v1/vehicles/VAN001", nil, "manager",
		map[string]string{"code": "VAN001"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), envelope["reservations_removed"])

	rec, _ = callForm(t, h.Delete, http.MethodDelete, "/v1/vehicles/VAN001", nil, "manager",
		map[string]string{"code": "VAN001"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteVehicleRefusedWhileOut(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)

	rh := NewReservationHandler(h.Ledger, nil)
	body := `{"requester_name":"Sam Driver","starts_at":"2026-09-01","ends_at":"2026-09-04","vehicle_code":"VAN001"}`
	rec, _ := call(t, rh.Create, http.MethodPost, "/v1/reservations", body, "sam@parc.example", "etudiant", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, envelope := callForm(t, h.Delete, http.MethodDelete, "/v1/vehicles/VAN001", nil, "manager",
		map[string]string{"code": "VAN001"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, envelope["message"], "unit(s) out")
}

func TestListVehiclesFilters(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)
	berline := registerForm("CAR001", "1")
	berline.Set("category", "Berline")
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", berline, "manager", nil)

	rec, envelope := callForm(t, h.List, http.MethodGet, "/v1/vehicles?category=Berline", nil, "etudiant", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), envelope["count"])

	rec, envelope = callForm(t, h.Categories, http.MethodGet, "/v1/categories", nil, "etudiant", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Berline", "Utilitaire"}, envelope["categories"])
}

func TestGetVehicleWithHistory(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)

	rh := NewReservationHandler(h.Ledger, nil)
	body := `{"requester_name":"Sam Driver","starts_at":"2026-09-01","ends_at":"2026-09-04","vehicle_code":"VAN001"}`
	call(t, rh.Create, http.MethodPost, "/v1/reservations", body, "sam@parc.example", "etudiant", nil)

	rec, envelope := callForm(t, h.Get, http.MethodGet, "/v1/vehicles/VAN001", nil, "etudiant",
		map[string]string{"code": "VAN001"})
	assert.Equal(t, http.StatusOK, rec.Code)
	v := envelope["vehicle"].(map[string]any)
	assert.Equal(t, float64(2), v["qty_available"])
	assert.Len(t, envelope["history"].([]any), 1)
}

func TestDashboardAggregates(t *testing.T) {
	h := newVehicleHandler(t)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("VAN001", "3"), "manager", nil)
	callForm(t, h.Create, http.MethodPost, "/v1/vehicles", registerForm("CAR001", "2"), "manager", nil)

	rh := NewReservationHandler(h.Ledger, nil)
	body := `{"requester_name":"Sam Driver","starts_at":"2026-09-01","ends_at":"2026-09-04","vehicle_code":"VAN001"}`
	call(t, rh.Create, http.MethodPost, "/v1/reservations", body, "sam@parc.example", "etudiant", nil)

	rec, envelope := callForm(t, h.Dashboard, http.MethodGet, "/v1/dashboard", nil, "manager", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), envelope["vehicles"])
	units := envelope["units"].(map[string]any)
	assert.Equal(t, float64(5), units["total"])
	assert.Equal(t, float64(4), units["available"])
	assert.Equal(t, float64(1), units["unavailable"])
	byStatus := envelope["reservations"].(map[string]any)
	assert.Equal(t, float64(1), byStatus["Pending"])
}
