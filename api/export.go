package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// ExportHandler 导出处理器
type ExportHandler struct {
	store repository.Store
}

// NewExportHandler 创建导出处理器
func NewExportHandler(store repository.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

// exportRange 解析导出的日期范围，两端均可省略
func exportRange(c *gin.Context) (string, string, bool) {
	dateFrom := c.Query("date_from")
	dateTo := c.Query("date_to")
	for _, d := range []string{dateFrom, dateTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			BadRequest(c, "日期格式错误，应为: 2024-01-01")
			return "", "", false
		}
	}
	return dateFrom, dateTo, true
}

// billCategoryName 导出时显示分类名称，缺失时退回ID
func billCategoryName(names map[int64]string, id int64) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("%d", id)
}

// ExportCSV 导出账单为 CSV
// @Summary 导出账单 (CSV)
// @Description 导出当前用户指定日期范围内的账单为 CSV 文件
// @Tags 导出
// @Produce text/csv
// @Security BearerAuth
// @Param date_from query string false "开始日期 (2024-01-01)"
// @Param date_to query string false "结束日期 (2024-12-31)"
// @Success 200 {file} file "CSV 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/csv [get]
func (h *ExportHandler) ExportCSV(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	dateFrom, dateTo, ok := exportRange(c)
	if !ok {
		return
	}

	bills, err := h.store.ListBillsByDateRange(c.Request.Context(), userID, dateFrom, dateTo)
	if err != nil {
		StoreError(c, "查询账单失败", err)
		return
	}
	names, err := h.visibleCategoryNames(c, userID)
	if err != nil {
		StoreError(c, "查询分类失败", err)
		return
	}

	buf := new(bytes.Buffer)
	// 添加 BOM 以支持 Excel 中文显示
	buf.WriteString("\xEF\xBB\xBF")

	writer := csv.NewWriter(buf)
	headers := []string{"ID", "金额", "类型", "分类", "描述", "日期", "创建时间"}
	if err := writer.Write(headers); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}
	for _, bill := range bills {
		row := []string{
			fmt.Sprintf("%d", bill.ID),
			fmt.Sprintf("%.2f", bill.Amount),
			bill.Type,
			billCategoryName(names, bill.CategoryID),
			bill.Description,
			bill.Date,
			bill.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := writer.Write(row); err != nil {
			InternalError(c, "生成 CSV 失败")
			return
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		InternalError(c, "生成 CSV 失败")
		return
	}

	filename := fmt.Sprintf("bills_%s_%s.csv", dateFrom, dateTo)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// ExportExcel 导出账单为 Excel
// @Summary 导出账单 (Excel)
// @Description 导出当前用户指定日期范围内的账单为 xlsx 文件
// @Tags 导出
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param date_from query string false "开始日期 (2024-01-01)"
// @Param date_to query string false "结束日期 (2024-12-31)"
// @Success 200 {file} file "Excel 文件"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/export/excel [get]
func (h *ExportHandler) ExportExcel(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	dateFrom, dateTo, ok := exportRange(c)
	if !ok {
		return
	}

	bills, err := h.store.ListBillsByDateRange(c.Request.Context(), userID, dateFrom, dateTo)
	if err != nil {
		StoreError(c, "查询账单失败", err)
		return
	}
	names, err := h.visibleCategoryNames(c, userID)
	if err != nil {
		StoreError(c, "查询分类失败", err)
		return
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "账单"
	index, err := f.NewSheet(sheet)
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{"ID", "金额", "类型", "分类", "描述", "日期", "创建时间"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, header)
	}

	for rowIdx, bill := range bills {
		values := []interface{}{
			bill.ID,
			bill.Amount,
			bill.Type,
			billCategoryName(names, bill.CategoryID),
			bill.Description,
			bill.Date,
			bill.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for colIdx, value := range values {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		InternalError(c, "生成 Excel 失败")
		return
	}

	filename := fmt.Sprintf("bills_%s_%s.xlsx", dateFrom, dateTo)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// visibleCategoryNames 当前用户可见分类的 id→名称映射
func (h *ExportHandler) visibleCategoryNames(c *gin.Context, userID string) (map[int64]string, error) {
	categories, err := h.store.ListCategories(c.Request.Context(), userID, "")
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}
	return names, nil
}
