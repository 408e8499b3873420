package prompt

// Tier names the three prompt templates.
type Tier string

const (
	TierOverall Tier = "overall"
	TierWeekly  Tier = "weekly"
	TierDaily   Tier = "daily"
)

// Placeholder tokens shared by the declared templates. Every token that
// appears in a template must be bound at render time.
const (
	VarExamDate       = "examDate"
	VarDaysRemaining  = "daysRemaining"
	VarAvailableDays  = "availableDays"
	VarTotalHours     = "totalHours"
	VarEstimatedWeeks = "estimatedWeeks"
	VarRequiredDaily  = "requiredDailyHours"
	VarDailyHours     = "dailyHours"
	VarWeeklyDays     = "weeklyDays"
	VarRestDays       = "restDays"
	VarPace           = "pace"
	VarSubjects       = "subjects"
)

const defaultOverallTemplate = `你是一位资深的法律职业资格考试备考规划师。请根据考生情况制定整体备考战略。

考试日期：{{examDate}}，距今 {{daysRemaining}} 天，扣除机动复习时间后可用学习日 {{availableDays}} 天。
预计总学习时长 {{totalHours}} 小时，建议备考节奏：{{pace}}，预计 {{estimatedWeeks}} 周完成。
考生每日可投入 {{dailyHours}} 小时，每周学习 {{weeklyDays}} 天，按可用学习日折算每日需要约 {{requiredDailyHours}} 小时。
科目优先顺序（从高到低）：{{subjects}}。

请输出分阶段的整体备考策略：每个阶段的时间范围、主攻科目、阶段目标，以及最后的冲刺与查漏安排。`

const defaultWeeklyTemplate = `请基于下面的备考参数，为考生制定一份标准周学习计划。

每周学习 {{weeklyDays}} 天，休息 {{restDays}} 天，每日投入 {{dailyHours}} 小时。
科目优先顺序：{{subjects}}。总时长 {{totalHours}} 小时，共约 {{estimatedWeeks}} 周。

请按周一到周日列出每天的科目安排与学习重点，优先级高的科目占据精力最好的时段，并在每周安排一次错题回顾。`

const defaultDailyTemplate = `请为考生设计一份可直接执行的每日学习计划模板。

每日总学习时长 {{dailyHours}} 小时，当前主攻科目按优先级为：{{subjects}}。
备考节奏为{{pace}}，距离考试还有 {{daysRemaining}} 天。

请将一天拆分为具体时间段，标注每段的科目、时长（小时）与任务类型（听课/做题/背诵/复盘），时长合计不得超过每日总时长。`

// DefaultTemplates returns the compiled-in template set.
func DefaultTemplates() TemplateSet {
	return TemplateSet{
		Overall: defaultOverallTemplate,
		Weekly:  defaultWeeklyTemplate,
		Daily:   defaultDailyTemplate,
	}
}
