package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sort"
  "strings"
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/airwave/airwave-backend/internal/config"
  "github.com/airwave/airwave-backend/internal/logger"
  "github.com/airwave/airwave-backend/internal/normalization"
  "github.com/airwave/airwave-backend/internal/repos"
  "github.com/airwave/airwave-backend/internal/requestdata"
  "github.com/airwave/airwave-backend/internal/sse"
  "github.com/airwave/airwave-backend/internal/types"
)

type SlotInput struct {
  Name       string   `json:"name"`
  Type       string   `json:"type"`
  Required   bool     `json:"required"`
  Locked     bool     `json:"locked"`
  Candidates []string `json:"candidates"`
}

type CreateMatrixInput struct {
  CampaignID  uuid.UUID   `json:"campaign_id"`
  Name        string      `json:"name"`
  Description string      `json:"description"`
  Slots       []SlotInput `json:"slots"`
}

type GenerateCombinationsInput struct {
  VarySlotIDs     []uuid.UUID `json:"vary_slot_ids"`
  MaxCombinations int         `json:"max_combinations"`
}

type MatrixDetail struct {
  Matrix *types.Matrix      `json:"matrix"`
  Slots  []*types.MatrixSlot `json:"slots"`
  Rows   []*types.MatrixRow  `json:"rows"`
}

type MatrixService interface {
  CreateMatrix(ctx context.Context, input CreateMatrixInput) (*MatrixDetail, error)
  GetMatrix(ctx context.Context, matrixID uuid.UUID) (*MatrixDetail, error)
  ListMatrices(ctx context.Context, campaignID uuid.UUID) ([]*types.Matrix, error)
  UpdateMatrix(ctx context.Context, matrixID uuid.UUID, updates map[string]interface{}) (*types.Matrix, error)
  DeleteMatrix(ctx context.Context, matrixID uuid.UUID) error
  UpdateSlot(ctx context.Context, slotID uuid.UUID, input SlotInput) (*types.MatrixSlot, error)
  GenerateCombinations(ctx context.Context, matrixID uuid.UUID, input GenerateCombinationsInput) ([]*types.MatrixRow, error)
}

type matrixService struct {
  db              *gorm.DB
  log             *logger.Logger
  cfg             *config.RenderConfig
  matrixRepo      repos.MatrixRepo
  matrixSlotRepo  repos.MatrixSlotRepo
  matrixRowRepo   repos.MatrixRowRepo
  campaignService CampaignService
  hub             *sse.SSEHub
}

func NewMatrixService(
  db *gorm.DB,
  log *logger.Logger,
  cfg *config.RenderConfig,
  matrixRepo repos.MatrixRepo,
  matrixSlotRepo repos.MatrixSlotRepo,
  matrixRowRepo repos.MatrixRowRepo,
  campaignService CampaignService,
  hub *sse.SSEHub,
) MatrixService {
  serviceLog := log.With("service", "MatrixService")
  return &matrixService{
    db:              db,
    log:             serviceLog,
    cfg:             cfg,
    matrixRepo:      matrixRepo,
    matrixSlotRepo:  matrixSlotRepo,
    matrixRowRepo:   matrixRowRepo,
    campaignService: campaignService,
    hub:             hub,
  }
}

func (ms *matrixService) CreateMatrix(ctx context.Context, input CreateMatrixInput) (*MatrixDetail, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, fmt.Errorf("Unauthorized")
  }
  if _, err := ms.campaignService.GetCampaign(ctx, input.CampaignID); err != nil {
    return nil, err
  }
  name := normalization.ParseInputString(input.Name)
  if name == "" {
    return nil, fmt.Errorf("Matrix name is required")
  }
  for _, s := range input.Slots {
    if !types.ValidAssetType(s.Type) {
      return nil, fmt.Errorf("Invalid slot type %q", s.Type)
    }
    if strings.TrimSpace(s.Name) == "" {
      return nil, fmt.Errorf("Slot name is required")
    }
  }

  now := time.Now()
  matrix := &types.Matrix{
    ID:          uuid.New(),
    CampaignID:  input.CampaignID,
    CreatedBy:   rd.UserID,
    Name:        name,
    Description: input.Description,
    CreatedAt:   now,
    UpdatedAt:   now,
  }
  slots := make([]*types.MatrixSlot, 0, len(input.Slots))
  for i, s := range input.Slots {
    candidates, err := json.Marshal(s.Candidates)
    if err != nil {
      return nil, fmt.Errorf("Failed to encode slot candidates: %w", err)
    }
    slots = append(slots, &types.MatrixSlot{
      ID:         uuid.New(),
      MatrixID:   matrix.ID,
      Index:      i,
      Name:       strings.TrimSpace(s.Name),
      Type:       s.Type,
      Required:   s.Required,
      Locked:     s.Locked,
      Candidates: datatypes.JSON(candidates),
      CreatedAt:  now,
      UpdatedAt:  now,
    })
  }

  if err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if _, err := ms.matrixRepo.Create(ctx, tx, []*types.Matrix{matrix}); err != nil {
      return fmt.Errorf("Failed to create matrix: %w", err)
    }
    if len(slots) > 0 {
      if _, err := ms.matrixSlotRepo.Create(ctx, tx, slots); err != nil {
        return fmt.Errorf("Failed to create matrix slots: %w", err)
      }
    }
    return nil
  }); err != nil {
    return nil, err
  }
  return &MatrixDetail{Matrix: matrix, Slots: slots, Rows: []*types.MatrixRow{}}, nil
}

func (ms *matrixService) GetMatrix(ctx context.Context, matrixID uuid.UUID) (*MatrixDetail, error) {
  matrix, err := ms.getOwnedMatrix(ctx, matrixID)
  if err != nil {
    return nil, err
  }
  slots, err := ms.matrixSlotRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch matrix slots: %w", err)
  }
  rows, err := ms.matrixRowRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch matrix rows: %w", err)
  }
  return &MatrixDetail{Matrix: matrix, Slots: slots, Rows: rows}, nil
}

func (ms *matrixService) ListMatrices(ctx context.Context, campaignID uuid.UUID) ([]*types.Matrix, error) {
  if _, err := ms.campaignService.GetCampaign(ctx, campaignID); err != nil {
    return nil, err
  }
  matrices, err := ms.matrixRepo.GetByCampaignID(ctx, nil, campaignID)
  if err != nil {
    return nil, fmt.Errorf("Failed to list matrices: %w", err)
  }
  return matrices, nil
}

var allowedMatrixUpdateFields = map[string]bool{
  "name":        true,
  "description": true,
  "metadata":    true,
}

func (ms *matrixService) UpdateMatrix(ctx context.Context, matrixID uuid.UUID, updates map[string]interface{}) (*types.Matrix, error) {
  if _, err := ms.getOwnedMatrix(ctx, matrixID); err != nil {
    return nil, err
  }
  filtered := map[string]interface{}{}
  for k, v := range updates {
    if allowedMatrixUpdateFields[k] {
      filtered[k] = v
    }
  }
  if len(filtered) > 0 {
    if err := ms.matrixRepo.UpdateFields(ctx, nil, matrixID, filtered); err != nil {
      return nil, fmt.Errorf("Failed to update matrix: %w", err)
    }
  }
  found, err := ms.matrixRepo.GetByIDs(ctx, nil, []uuid.UUID{matrixID})
  if err != nil || len(found) == 0 {
    return nil, fmt.Errorf("Failed to reload matrix")
  }
  return found[0], nil
}

func (ms *matrixService) DeleteMatrix(ctx context.Context, matrixID uuid.UUID) error {
  if _, err := ms.getOwnedMatrix(ctx, matrixID); err != nil {
    return err
  }
  if err := ms.matrixRepo.SoftDeleteByIDs(ctx, nil, []uuid.UUID{matrixID}); err != nil {
    return fmt.Errorf("Failed to delete matrix: %w", err)
  }
  return nil
}

func (ms *matrixService) UpdateSlot(ctx context.Context, slotID uuid.UUID, input SlotInput) (*types.MatrixSlot, error) {
  found, err := ms.matrixSlotRepo.GetByIDs(ctx, nil, []uuid.UUID{slotID})
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch slot: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("Slot not found")
  }
  slot := found[0]
  if _, err := ms.getOwnedMatrix(ctx, slot.MatrixID); err != nil {
    return nil, err
  }
  candidates, err := json.Marshal(input.Candidates)
  if err != nil {
    return nil, fmt.Errorf("Failed to encode slot candidates: %w", err)
  }
  updates := map[string]interface{}{
    "required":   input.Required,
    "locked":     input.Locked,
    "candidates": datatypes.JSON(candidates),
  }
  if strings.TrimSpace(input.Name) != "" {
    updates["name"] = strings.TrimSpace(input.Name)
  }
  if err := ms.matrixSlotRepo.UpdateFields(ctx, nil, slotID, updates); err != nil {
    return nil, fmt.Errorf("Failed to update slot: %w", err)
  }
  reloaded, err := ms.matrixSlotRepo.GetByIDs(ctx, nil, []uuid.UUID{slotID})
  if err != nil || len(reloaded) == 0 {
    return nil, fmt.Errorf("Failed to reload slot")
  }
  return reloaded[0], nil
}

// GenerateCombinations replaces the matrix's unlocked rows with a freshly
// permuted set. Locked rows are preserved verbatim and count against
// deduplication so a regeneration never produces a duplicate of a row the
// user pinned.
func (ms *matrixService) GenerateCombinations(ctx context.Context, matrixID uuid.UUID, input GenerateCombinationsInput) ([]*types.MatrixRow, error) {
  if _, err := ms.getOwnedMatrix(ctx, matrixID); err != nil {
    return nil, err
  }
  maxCombinations := input.MaxCombinations
  if maxCombinations == 0 {
    maxCombinations = ms.cfg.MaxCombinations
  }
  if maxCombinations < 1 {
    return nil, fmt.Errorf("max_combinations must be >= 1")
  }

  slots, err := ms.matrixSlotRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch matrix slots: %w", err)
  }
  if len(slots) == 0 {
    return nil, fmt.Errorf("Matrix has no slots; nothing to generate")
  }

  specs := make([]slotSpec, 0, len(slots))
  for _, slot := range slots {
    candidates, dErr := decodeCandidates(slot.Candidates)
    if dErr != nil {
      return nil, fmt.Errorf("Slot %s has invalid candidates: %w", slot.ID, dErr)
    }
    specs = append(specs, slotSpec{
      id:         slot.ID.String(),
      locked:     slot.Locked,
      candidates: candidates,
    })
  }

  vary := map[string]bool{}
  for _, id := range input.VarySlotIDs {
    vary[id.String()] = true
  }

  assignments, gErr := generateAssignments(specs, vary, maxCombinations)
  if gErr != nil {
    return nil, gErr
  }

  existing, err := ms.matrixRowRepo.GetByMatrixID(ctx, nil, matrixID)
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch matrix rows: %w", err)
  }
  lockedSignatures := map[string]bool{}
  lockedRows := make([]*types.MatrixRow, 0)
  for _, row := range existing {
    if !row.Locked {
      continue
    }
    lockedRows = append(lockedRows, row)
    sig, sErr := assignmentSignatureJSON(row.Assignments)
    if sErr != nil {
      ms.log.Warn("Skipping locked row with unreadable assignments", "rowID", row.ID, "error", sErr)
      continue
    }
    lockedSignatures[sig] = true
  }

  now := time.Now()
  newRows := make([]*types.MatrixRow, 0, len(assignments))
  for _, assignment := range assignments {
    if lockedSignatures[assignmentSignature(assignment)] {
      continue
    }
    encoded, eErr := json.Marshal(assignment)
    if eErr != nil {
      return nil, fmt.Errorf("Failed to encode row assignments: %w", eErr)
    }
    newRows = append(newRows, &types.MatrixRow{
      ID:          uuid.New(),
      MatrixID:    matrixID,
      Assignments: datatypes.JSON(encoded),
      Status:      types.RowStatusDraft,
      CreatedAt:   now,
      UpdatedAt:   now,
    })
  }

  if err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if dErr := ms.matrixRowRepo.FullDeleteUnlockedByMatrixID(ctx, tx, matrixID); dErr != nil {
      return fmt.Errorf("Failed to clear unlocked rows: %w", dErr)
    }
    if len(newRows) > 0 {
      if _, cErr := ms.matrixRowRepo.Create(ctx, tx, newRows); cErr != nil {
        return fmt.Errorf("Failed to create matrix rows: %w", cErr)
      }
    }
    return ms.matrixRepo.UpdateFields(ctx, tx, matrixID, map[string]interface{}{})
  }); err != nil {
    return nil, err
  }

  if ms.hub != nil {
    ms.hub.Broadcast(sse.SSEMessage{
      Channel: sse.MatrixChannel(matrixID),
      Event:   sse.SSEEventMatrixRowsGenerated,
      Data: map[string]interface{}{
        "matrix_id": matrixID,
        "generated": len(newRows),
        "locked":    len(lockedRows),
      },
    })
  }

  out := make([]*types.MatrixRow, 0, len(lockedRows)+len(newRows))
  out = append(out, lockedRows...)
  out = append(out, newRows...)
  return out, nil
}

func (ms *matrixService) getOwnedMatrix(ctx context.Context, matrixID uuid.UUID) (*types.Matrix, error) {
  found, err := ms.matrixRepo.GetByIDs(ctx, nil, []uuid.UUID{matrixID})
  if err != nil {
    return nil, fmt.Errorf("Failed to fetch matrix: %w", err)
  }
  if len(found) == 0 || found[0] == nil {
    return nil, fmt.Errorf("Matrix not found")
  }
  if _, err := ms.campaignService.GetCampaign(ctx, found[0].CampaignID); err != nil {
    return nil, fmt.Errorf("Matrix not found")
  }
  return found[0], nil
}

type slotSpec struct {
  id         string
  locked     bool
  candidates []string
}

// generateAssignments enumerates slot->asset assignments. Slots outside the
// varying set, and all locked slots, contribute their first candidate. Each
// varying slot then crosses the partial list with its candidate list,
// stopping as soon as the running total reaches maxCombinations. Slots with
// no candidates are skipped; if no slot has any candidate at all the call
// fails instead of yielding a single empty assignment. Output order is
// deterministic:
// first-candidate-first, slots expanded left to right.
func generateAssignments(slots []slotSpec, vary map[string]bool, maxCombinations int) ([]map[string]string, error) {
  if maxCombinations < 1 {
    return nil, fmt.Errorf("max_combinations must be >= 1")
  }

  varyAll := len(vary) == 0

  base := map[string]string{}
  varying := make([]slotSpec, 0, len(slots))
  for _, slot := range slots {
    if len(slot.candidates) == 0 {
      continue
    }
    varies := !slot.locked && (varyAll || vary[slot.id])
    if varies {
      varying = append(varying, slot)
      continue
    }
    base[slot.id] = slot.candidates[0]
  }
  if len(base) == 0 && len(varying) == 0 {
    return nil, fmt.Errorf("No eligible slots: every slot has an empty candidate list")
  }

  partials := []map[string]string{copyAssignment(base)}
  for _, slot := range varying {
    next := make([]map[string]string, 0, len(partials)*len(slot.candidates))
    for _, partial := range partials {
      for _, candidate := range slot.candidates {
        expanded := copyAssignment(partial)
        expanded[slot.id] = candidate
        next = append(next, expanded)
        if len(next) >= maxCombinations {
          break
        }
      }
      if len(next) >= maxCombinations {
        break
      }
    }
    partials = next
  }
  if len(partials) > maxCombinations {
    partials = partials[:maxCombinations]
  }
  return partials, nil
}

func copyAssignment(src map[string]string) map[string]string {
  dst := make(map[string]string, len(src)+1)
  for k, v := range src {
    dst[k] = v
  }
  return dst
}

// assignmentSignature is a canonical form used for row deduplication.
func assignmentSignature(assignment map[string]string) string {
  keys := make([]string, 0, len(assignment))
  for k := range assignment {
    keys = append(keys, k)
  }
  sort.Strings(keys)
  var b strings.Builder
  for _, k := range keys {
    b.WriteString(k)
    b.WriteByte('=')
    b.WriteString(assignment[k])
    b.WriteByte(';')
  }
  return b.String()
}

func assignmentSignatureJSON(raw datatypes.JSON) (string, error) {
  assignment, err := decodeAssignments(raw)
  if err != nil {
    return "", err
  }
  return assignmentSignature(assignment), nil
}

func decodeAssignments(raw datatypes.JSON) (map[string]string, error) {
  if len(raw) == 0 {
    return map[string]string{}, nil
  }
  var assignment map[string]string
  if err := json.Unmarshal(raw, &assignment); err != nil {
    return nil, err
  }
  return assignment, nil
}

func decodeCandidates(raw datatypes.JSON) ([]string, error) {
  if len(raw) == 0 {
    return nil, nil
  }
  var candidates []string
  if err := json.Unmarshal(raw, &candidates); err != nil {
    return nil, err
  }
  return candidates, nil
}
