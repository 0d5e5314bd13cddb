package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"
	"p9e.in/fixport/models"
)

// ExportCompleted downloads the tenant's completed work orders as an
// Excel workbook.
func (h *WorkOrderHandler) ExportCompleted(w http.ResponseWriter, r *http.Request) {
	company, ok := requireTenant(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListWorkOrders(r.Context(), company.ID, models.StatusCompleted)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	f, err := createWorkOrderWorkbook(company.Name, orders)
	if err != nil {
		http.Error(w, "Failed to generate Excel file", http.StatusInternalServerError)
		return
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "Failed to write Excel file", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("%s_completed_%s.xlsx", company.Slug, time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))

	w.WriteHeader(http.StatusOK)
	w.Write(buffer.Bytes())
}

func createWorkOrderWorkbook(companyName string, orders []models.WorkOrder) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Completed"
	f.SetSheetName("Sheet1", sheet)

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "left"},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
	})

	f.SetCellValue(sheet, "A1", companyName+" - Completed Work Orders")
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)

	headers := []string{"Title", "Location", "Priority", "Execution", "PO Number", "Requested By", "Created", "Completed", "Completion Note"}
	for i, hdr := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		f.SetCellValue(sheet, cell, hdr)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for row, wo := range orders {
		po := ""
		if wo.PONotApplicable {
			po = "N/A"
		} else if wo.PONumber != nil {
			po = *wo.PONumber
		}
		completed := ""
		if wo.CompletedAt != nil {
			completed = wo.CompletedAt.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			wo.Title, wo.Location, string(wo.Priority), string(wo.Execution), po,
			wo.RequestedByName, wo.CreatedAt.Format("2006-01-02 15:04"), completed, wo.CompletedNote,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+4)
			f.SetCellValue(sheet, cell, v)
		}
	}

	f.SetColWidth(sheet, "A", "B", 30)
	f.SetColWidth(sheet, "C", "H", 16)
	f.SetColWidth(sheet, "I", "I", 40)
	return f, nil
}
