package httpapi

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"farmhub-actuation/internal/models"
)

// ActionExportHeader 动作导出表头
var ActionExportHeader = []string{
	"Action ID",
	"Device ID",
	"Target Device ID",
	"Command",
	"Trigger Source",
	"Action Type",
	"Status",
	"Retry Count",
	"Sensor ID",
	"Violation Type",
	"Error Message",
	"Sent At",
	"Ack At",
	"Created At",
}

// GenerateActionExport 生成动作历史导出 Excel 文件
// items 为空时只生成表头
func GenerateActionExport(items []*models.Action) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	sheetName := "Actions"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	// 删除默认的 Sheet1
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	// 表头样式
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ActionExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{
		38, // Action ID
		20, // Device ID
		20, // Target Device ID
		18, // Command
		15, // Trigger Source
		12, // Action Type
		10, // Status
		12, // Retry Count
		20, // Sensor ID
		15, // Violation Type
		30, // Error Message
		20, // Sent At
		20, // Ack At
		20, // Created At
	}
	for i := 0; i < len(ActionExportHeader); i++ {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(columnWidths) && columnWidths[i] > 0 {
			if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for rowIdx, action := range items {
		row := rowIdx + 2 // 从第2行开始（第1行是表头）
		values := []any{
			action.ActionID,
			action.DeviceID,
			action.TargetDeviceID,
			action.Command,
			action.TriggerSource,
			action.ActionType,
			action.Status,
			action.RetryCount,
			strPtrValue(action.SensorID),
			strPtrValue(action.ViolationType),
			strPtrValue(action.ErrorMessage),
			timePtrValue(action.SentAt),
			timePtrValue(action.AckAt),
			action.CreatedAt.Format(time.RFC3339),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write excel: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close excel file: %w", err)
	}

	return buf.Bytes(), nil
}

func strPtrValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timePtrValue(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format(time.RFC3339)
}
