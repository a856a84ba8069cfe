package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/eudg/core"
	"github.com/trezcool/eudg/core/dataset"
	"github.com/trezcool/eudg/core/gbt"
)

var nowFunc = time.Now // mockable

type (
	// SessionStore holds the current session. Implementations must publish sessions atomically.
	SessionStore interface {
		// Load returns the current session, or nil before the first successful run.
		Load() *Session
		// Store replaces the current session.
		Store(sess *Session)
	}

	ServiceInterface interface {
		Process(ctx context.Context, files Files) ([]Summary, error)
		StudentDetails(ctx context.Context, studentID string) (StudentDetails, error)
		SessionInfo(ctx context.Context) (SessionInfo, error)
		Artifact(ctx context.Context) (ModelArtifact, error)
	}

	Service struct {
		store   SessionStore
		decoder *dataset.Decoder
		logger  core.Logger
		params  gbt.Params
		labeler Labeler
		policy  FillPolicy
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	store SessionStore,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
	conf *core.Config,
) *Service {
	labeler := Labeler{
		AttendanceThreshold: conf.Risk.AttendanceThreshold,
		MarksThreshold:      conf.Risk.MarksThreshold,
	}
	if labeler == (Labeler{}) {
		labeler = DefaultLabeler
	}

	return &Service{
		store:   store,
		decoder: dataset.NewDecoder(validate, translator),
		logger:  logger,
		params:  modelParams(conf.Model),
		labeler: labeler,
		policy:  ZeroFill,
	}
}

func modelParams(conf core.ModelConfig) gbt.Params {
	params := gbt.DefaultParams()
	if conf.Rounds > 0 {
		params.Rounds = conf.Rounds
	}
	if conf.MaxDepth > 0 {
		params.MaxDepth = conf.MaxDepth
	}
	if conf.LearningRate > 0 {
		params.LearningRate = conf.LearningRate
	}
	if conf.MinSamplesLeaf > 0 {
		params.MinSamplesLeaf = conf.MinSamplesLeaf
	}
	params.Lambda = conf.Lambda
	params.Gamma = conf.Gamma
	params.MinChildWeight = conf.MinChildWeight
	return params
}

// Process runs the ingestion & training pipeline and publishes the resulting session.
// On failure the current session is left as it was.
func (svc *Service) Process(ctx context.Context, files Files) ([]Summary, error) {
	start := nowFunc()
	sess, err := svc.buildSession(files)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		pipelineRuns.WithLabelValues("failure").Inc()
		return nil, processingError(err)
	}

	svc.store.Store(sess)

	pipelineRuns.WithLabelValues("success").Inc()
	pipelineDuration.Observe(nowFunc().Sub(start).Seconds())
	sessionStudents.Set(float64(len(sess.Table.Records)))
	info := sess.Info()
	svc.logger.Info(fmt.Sprintf("session %s published: %d students, %d at risk", sess.ID, info.Students, info.AtRisk))

	return sess.Table.Summaries(), nil
}

func (svc *Service) buildSession(files Files) (*Session, error) {
	students, err := dataset.Read(FieldStudents, files.Students, ColStudentID, ColName, ColDepartment)
	if err != nil {
		return nil, err
	}
	attendance, err := dataset.Read(FieldAttendance, files.Attendance, ColStudentID, ColStatus)
	if err != nil {
		return nil, err
	}
	assessments, err := dataset.Read(FieldAssessments, files.Assessments, ColStudentID, ColMarksObtained)
	if err != nil {
		return nil, err
	}
	fees, err := dataset.Read(FieldFees, files.Fees, ColStudentID, ColStatus)
	if err != nil {
		return nil, err
	}

	studentRows, err := dataset.DecodeRows[studentRow](svc.decoder, students)
	if err != nil {
		return nil, err
	}
	if len(studentRows) == 0 {
		return nil, errors.Errorf("%s: no students", FieldStudents)
	}
	attendanceRows, err := dataset.DecodeRows[attendanceRow](svc.decoder, attendance)
	if err != nil {
		return nil, err
	}
	assessmentRows, err := dataset.DecodeRows[assessmentRow](svc.decoder, assessments)
	if err != nil {
		return nil, err
	}
	feeRows, err := dataset.DecodeRows[feeRow](svc.decoder, fees)
	if err != nil {
		return nil, err
	}

	records, err := consolidate(
		students, studentRows,
		attendanceRates(attendanceRows),
		averageMarks(assessmentRows),
		feeStatuses(feeRows),
		svc.policy, svc.labeler,
	)
	if err != nil {
		return nil, err
	}

	schema := BuildSchema(records)
	X := schema.EncodeAll(records)
	y := make([]int, len(records))
	for i, rec := range records {
		y[i] = rec.AtRisk
	}

	model := gbt.NewBooster(svc.params)
	if err := model.Fit(X, y); err != nil {
		return nil, errors.Wrap(err, "training model")
	}
	predictions := model.Predict(X)
	scores := model.PredictProba(X)
	for i := range records {
		records[i].RiskPrediction = predictions[i]
		records[i].RiskScore = scores[i]
	}

	return &Session{
		ID:          uuid.New().String(),
		CreatedAt:   nowFunc().UTC(),
		Table:       newConsolidatedTable(records),
		Model:       model,
		Schema:      schema,
		Assessments: assessments,
	}, nil
}

// StudentDetails returns the student's row, raw assessments and risk explanation.
func (svc *Service) StudentDetails(_ context.Context, studentID string) (StudentDetails, error) {
	sess := svc.store.Load()
	if sess == nil {
		explanations.WithLabelValues("not_processed").Inc()
		return StudentDetails{}, ErrNotProcessed
	}
	rec, ok := sess.Table.Lookup(studentID)
	if !ok {
		explanations.WithLabelValues("not_found").Inc()
		return StudentDetails{}, ErrStudentNotFound
	}

	explanation, err := explain(sess, rec)
	if err != nil {
		return StudentDetails{}, errors.Wrapf(err, "explaining student %q", studentID)
	}

	rows := sess.Assessments.Filter(ColStudentID, studentID)
	trend := make([]map[string]interface{}, 0, len(rows))
	for _, r := range rows {
		trend = append(trend, sess.Assessments.Record(r))
	}

	explanations.WithLabelValues("success").Inc()
	return StudentDetails{
		MainData:        rec.Map(),
		AssessmentTrend: trend,
		Explanation:     explanation,
	}, nil
}

// SessionInfo describes the current session.
func (svc *Service) SessionInfo(_ context.Context) (SessionInfo, error) {
	sess := svc.store.Load()
	if sess == nil {
		return SessionInfo{}, ErrNotProcessed
	}
	return sess.Info(), nil
}

// Artifact returns the current model paired with its feature schema.
func (svc *Service) Artifact(_ context.Context) (ModelArtifact, error) {
	sess := svc.store.Load()
	if sess == nil {
		return ModelArtifact{}, ErrNotProcessed
	}
	return sess.Artifact(), nil
}

func explain(sess *Session, rec StudentRecord) (Explanation, error) {
	x := sess.Schema.Encode(rec)
	if len(x) != sess.Model.NumFeatures {
		return Explanation{}, errors.Errorf("schema has %d columns, model expects %d", len(x), sess.Model.NumFeatures)
	}
	explainer, err := gbt.NewTreeExplainer(sess.Model)
	if err != nil {
		return Explanation{}, err
	}
	return Explanation{
		BaseValue:     explainer.ExpectedValue(),
		ShapValues:    explainer.Explain(x),
		FeatureNames:  sess.Schema.Names(),
		FeatureValues: x,
	}, nil
}
