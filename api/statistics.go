package api

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"anyu/middleware"
	"anyu/models"
	"anyu/repository"

	"github.com/gin-gonic/gin"
	"github.com/wcharczuk/go-chart/v2"
)

// StatisticsHandler 统计处理器
// 所有聚合都只针对当前用户的账单，绝不跨账户
type StatisticsHandler struct {
	store repository.Store
}

// NewStatisticsHandler 创建统计处理器
func NewStatisticsHandler(store repository.Store) *StatisticsHandler {
	return &StatisticsHandler{store: store}
}

// CategoryStat 分类统计项
type CategoryStat struct {
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
	Amount       float64 `json:"amount"`
	Percentage   float64 `json:"percentage"`
}

// DailyStat 按日统计项
type DailyStat struct {
	Date    string  `json:"date"`
	Income  float64 `json:"income"`
	Outcome float64 `json:"outcome"`
}

// MonthlySummary 按月汇总项
type MonthlySummary struct {
	Month   int     `json:"month"`
	Income  float64 `json:"income"`
	Outcome float64 `json:"outcome"`
	Balance float64 `json:"balance"`
}

// round2 金额保留两位小数
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// parseYearMonth 解析并校验 year/month 查询参数，缺省为当前时间
func parseYearMonth(c *gin.Context) (int, int, bool) {
	now := time.Now()
	year := now.Year()
	month := int(now.Month())

	if s := c.Query("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 2000 || y > 2100 {
			BadRequest(c, "year格式错误，应为4位数字（如：2024）")
			return 0, 0, false
		}
		year = y
	}
	if s := c.Query("month"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil || m < 1 || m > 12 {
			BadRequest(c, "month格式错误，应为1-12")
			return 0, 0, false
		}
		month = m
	}
	return year, month, true
}

// monthRange 指定月份的起止日期
func monthRange(year, month int) (string, string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(models.DateLayout), end.Format(models.DateLayout)
}

// categoryNames 构建当前用户可见分类的 id→名称映射
func (h *StatisticsHandler) categoryNames(c *gin.Context, userID string) (map[int64]string, error) {
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

// aggregateByCategory 按分类聚合支出并计算占比
func aggregateByCategory(bills []models.Bill, names map[int64]string, onlyOutcome bool) []CategoryStat {
	amounts := map[int64]float64{}
	var total float64
	for _, bill := range bills {
		if onlyOutcome && bill.Type != models.TypeOutcome {
			continue
		}
		amounts[bill.CategoryID] += bill.Amount
		total += bill.Amount
	}

	stats := make([]CategoryStat, 0, len(amounts))
	for id, amount := range amounts {
		stat := CategoryStat{
			CategoryID:   id,
			CategoryName: names[id],
			Amount:       round2(amount),
		}
		if total > 0 {
			stat.Percentage = round2(amount / total * 100)
		}
		stats = append(stats, stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Amount > stats[j].Amount })
	return stats
}

// Monthly 月度统计
// @Summary 月度统计
// @Description 当前用户指定月份的收支汇总、分类统计与按日统计
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param year query int false "年份，默认当前年"
// @Param month query int false "月份，默认当前月"
// @Success 200 {object} Response "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/statistics/monthly [get]
func (h *StatisticsHandler) Monthly(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	startDate, endDate := monthRange(year, month)

	bills, err := h.store.ListBillsByDateRange(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		StoreError(c, "获取统计数据失败", err)
		return
	}

	var totalIncome, totalOutcome float64
	daily := map[string]*DailyStat{}
	for _, bill := range bills {
		if bill.Type == models.TypeIncome {
			totalIncome += bill.Amount
		} else {
			totalOutcome += bill.Amount
		}
		d, ok := daily[bill.Date]
		if !ok {
			d = &DailyStat{Date: bill.Date}
			daily[bill.Date] = d
		}
		if bill.Type == models.TypeIncome {
			d.Income += bill.Amount
		} else {
			d.Outcome += bill.Amount
		}
	}

	dailyStats := make([]DailyStat, 0, len(daily))
	for _, d := range daily {
		d.Income = round2(d.Income)
		d.Outcome = round2(d.Outcome)
		dailyStats = append(dailyStats, *d)
	}
	sort.Slice(dailyStats, func(i, j int) bool { return dailyStats[i].Date < dailyStats[j].Date })

	names, err := h.categoryNames(c, userID)
	if err != nil {
		StoreError(c, "获取分类失败", err)
		return
	}

	SuccessWithMessage(c, "获取月度统计成功", gin.H{
		"year":          year,
		"month":         month,
		"totalIncome":   round2(totalIncome),
		"totalOutcome":  round2(totalOutcome),
		"netBalance":    round2(totalIncome - totalOutcome),
		"categoryStats": aggregateByCategory(bills, names, true),
		"dailyStats":    dailyStats,
	})
}

// Yearly 年度统计
// @Summary 年度统计
// @Description 当前用户指定年份的逐月汇总与支出分类排行
// @Tags 统计
// @Produce json
// @Security BearerAuth
// @Param year query int false "年份，默认当前年"
// @Success 200 {object} Response "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/statistics/yearly [get]
func (h *StatisticsHandler) Yearly(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	year := time.Now().Year()
	if s := c.Query("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 2000 || y > 2100 {
			BadRequest(c, "year格式错误，应为4位数字（如：2024）")
			return
		}
		year = y
	}

	startDate := fmt.Sprintf("%d-01-01", year)
	endDate := fmt.Sprintf("%d-12-31", year)

	bills, err := h.store.ListBillsByDateRange(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		StoreError(c, "获取年度统计数据失败", err)
		return
	}

	// 初始化12个月
	summary := make([]MonthlySummary, 12)
	for i := range summary {
		summary[i].Month = i + 1
	}
	for _, bill := range bills {
		t, err := time.Parse(models.DateLayout, bill.Date)
		if err != nil {
			continue
		}
		m := int(t.Month()) - 1
		if bill.Type == models.TypeIncome {
			summary[m].Income += bill.Amount
		} else {
			summary[m].Outcome += bill.Amount
		}
	}
	for i := range summary {
		summary[i].Income = round2(summary[i].Income)
		summary[i].Outcome = round2(summary[i].Outcome)
		summary[i].Balance = round2(summary[i].Income - summary[i].Outcome)
	}

	names, err := h.categoryNames(c, userID)
	if err != nil {
		StoreError(c, "获取分类失败", err)
		return
	}
	topCategories := aggregateByCategory(bills, names, true)
	if len(topCategories) > 10 {
		topCategories = topCategories[:10]
	}

	SuccessWithMessage(c, "获取年度统计成功", gin.H{
		"year":           year,
		"monthlySummary": summary,
		"topCategories":  topCategories,
	})
}

// Chart 月度支出分类图
// @Summary 月度支出分类图
// @Description 渲染当前用户指定月份的支出分类柱状图（PNG）
// @Tags 统计
// @Produce png
// @Security BearerAuth
// @Param year query int false "年份，默认当前年"
// @Param month query int false "月份，默认当前月"
// @Success 200 {file} png "图片"
// @Failure 401 {object} Response "未授权"
// @Router /api/v1/statistics/chart [get]
func (h *StatisticsHandler) Chart(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	year, month, ok := parseYearMonth(c)
	if !ok {
		return
	}
	startDate, endDate := monthRange(year, month)

	bills, err := h.store.ListBillsByDateRange(c.Request.Context(), userID, startDate, endDate)
	if err != nil {
		StoreError(c, "获取统计数据失败", err)
		return
	}

	names, err := h.categoryNames(c, userID)
	if err != nil {
		StoreError(c, "获取分类失败", err)
		return
	}
	stats := aggregateByCategory(bills, names, true)
	if len(stats) == 0 {
		NotFound(c, "该月份没有支出数据")
		return
	}

	bars := make([]chart.Value, 0, len(stats))
	for _, stat := range stats {
		label := stat.CategoryName
		if label == "" {
			label = strconv.FormatInt(stat.CategoryID, 10)
		}
		bars = append(bars, chart.Value{Value: stat.Amount, Label: label})
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("%d-%02d 支出分类", year, month),
		Width:  800,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		BarWidth: 48,
		Bars:     bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		InternalError(c, "渲染图表失败")
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}
