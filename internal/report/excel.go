package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

var reportColumns = []string{
	"Employee", "Clock In", "Clock Out", "Lunch In", "Lunch Out", "Lunch (min)", "Worked (h)",
}

const timeFormat = "2006-01-02 15:04"

// WriteXLSX renders the report as a single-sheet workbook.
func WriteXLSX(rep *WeeklyReport, w io.Writer) error {
	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Weekly Shifts"
	file.SetSheetName("Sheet1", sheet)

	if err := writeHeader(file, sheet); err != nil {
		return err
	}

	row := 2
	for _, emp := range rep.Employees {
		for _, sr := range emp.Shifts {
			values := shiftRowValues(emp.UserID, sr)
			for col, val := range values {
				cell, err := excelize.CoordinatesToCellName(col+1, row)
				if err != nil {
					return err
				}
				if err := file.SetCellValue(sheet, cell, val); err != nil {
					return err
				}
			}
			row++
		}

		totalCell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, totalCell, fmt.Sprintf("%s total", emp.UserID)); err != nil {
			return err
		}
		hoursCell, err := excelize.CoordinatesToCellName(len(reportColumns), row)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, hoursCell, emp.TotalHours); err != nil {
			return err
		}
		row++
	}

	return file.Write(w)
}

func writeHeader(file *excelize.File, sheet string) error {
	for i, col := range reportColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = file.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func shiftRowValues(userID string, sr ShiftRow) []interface{} {
	clockOut, lunchIn, lunchOut := "", "", ""
	if sr.Shift.ClockOut != nil {
		clockOut = sr.Shift.ClockOut.Format(timeFormat)
	}
	if sr.Shift.LunchIn != nil {
		lunchIn = sr.Shift.LunchIn.Format(timeFormat)
	}
	if sr.Shift.LunchOut != nil {
		lunchOut = sr.Shift.LunchOut.Format(timeFormat)
	}

	return []interface{}{
		userID,
		sr.Shift.ClockIn.Format(timeFormat),
		clockOut,
		lunchIn,
		lunchOut,
		sr.LunchMinutes,
		sr.WorkedHours,
	}
}
