package interview

import "time"

// Evaluation 单个回答的评分结果，三个分数均在 [1,5]。
type Evaluation struct {
	Confidence     int    `json:"confidenceScore"`
	Clarity        int    `json:"clarityScore"`
	Correctness    int    `json:"correctnessScore"`
	Feedback       string `json:"feedback"`
	FollowUpNeeded bool   `json:"followUpNeeded"`
}

// Turn 是一次问答记录，写入后不再修改。
type Turn struct {
	Index      int        `json:"index"`
	Question   Question   `json:"question"`
	Answer     string     `json:"answer"`
	Evaluation Evaluation `json:"evaluation"`
	AnsweredAt time.Time  `json:"answeredAt"`
}

// Summary 面试结束时的整体评价，OverallScore 在 [1,10]。
type Summary struct {
	OverallScore        int      `json:"overallScore"`
	Strengths           []string `json:"strengths"`
	AreasForImprovement []string `json:"areasForImprovement"`
	Feedback            string   `json:"summaryFeedback"`
}
