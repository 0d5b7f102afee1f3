package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/XM-LEES/cutrix/internal/cutting/entity"
	"github.com/XM-LEES/cutrix/internal/cutting/lock"
	"github.com/XM-LEES/cutrix/internal/cutting/memstore"
	"github.com/XM-LEES/cutrix/internal/cutting/policy"
	"github.com/XM-LEES/cutrix/internal/cutting/reconcile"
	"github.com/XM-LEES/cutrix/internal/cutting/service"
)

// Fixture simulate 的输入文件
type Fixture struct {
	Order struct {
		OrderNumber  string `yaml:"order_number"`
		StyleNumber  string `yaml:"style_number"`
		CustomerName string `yaml:"customer_name"`
		Items        []struct {
			Color    string `yaml:"color"`
			Size     string `yaml:"size"`
			Quantity int    `yaml:"quantity"`
		} `yaml:"items"`
	} `yaml:"order"`
	Plan struct {
		Name    string          `yaml:"plan_name"`
		Layouts []fixtureLayout `yaml:"layouts"`
	} `yaml:"plan"`
	// 每一轮是一次完整的版型列表提交，按 layout_name 对应已有版型
	Edits    [][]fixtureLayout `yaml:"edits"`
	Publish  bool              `yaml:"publish"`
	Progress []struct {
		Layout          string `yaml:"layout"`
		Color           string `yaml:"color"`
		CompletedLayers int    `yaml:"completed_layers"`
	} `yaml:"progress"`
}

type fixtureLayout struct {
	Name          string             `yaml:"layout_name"`
	Note          string             `yaml:"note"`
	Colors        []string           `yaml:"colors"`
	PlannedLayers int                `yaml:"planned_layers"`
	Ratios        map[string]float64 `yaml:"ratios"`
}

var (
	simulateJSON    bool
	simulateVerbose bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <fixture.yaml>",
	Short: "在内存中模拟排产并打印对比矩阵",
	Example: `  cutrix simulate configs/simulate.example.yaml
  cutrix simulate plan.yaml --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fx, err := loadFixture(args[0])
		if err != nil {
			return err
		}
		logger := zap.NewNop()
		if simulateVerbose {
			logger, _ = zap.NewDevelopment()
		}
		return simulate(cmd.Context(), fx, logger, cmd.OutOrStdout(), simulateJSON)
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateJSON, "json", false, "以 JSON 输出最终矩阵")
	simulateCmd.Flags().BoolVarP(&simulateVerbose, "verbose", "v", false, "输出排产日志")
}

func loadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取模拟文件失败: %w", err)
	}
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("解析模拟文件失败: %w", err)
	}
	return &fx, nil
}

// toSpecs 按名称把版型对应到已有版型ID，找不到的作为新版型
func toSpecs(layouts []fixtureLayout, existing []entity.Layout) []reconcile.LayoutSpec {
	ids := make(map[string]string, len(existing))
	for _, l := range existing {
		ids[l.Name] = l.ID
	}
	specs := make([]reconcile.LayoutSpec, 0, len(layouts))
	for _, l := range layouts {
		spec := reconcile.LayoutSpec{
			LayoutID:      ids[l.Name],
			Colors:        l.Colors,
			PlannedLayers: l.PlannedLayers,
			Ratios:        l.Ratios,
		}
		if l.Name != "" {
			name := l.Name
			spec.Name = &name
		}
		if l.Note != "" {
			note := l.Note
			spec.Note = &note
		}
		specs = append(specs, spec)
	}
	return specs
}

func simulate(ctx context.Context, fx *Fixture, logger *zap.Logger, out io.Writer, asJSON bool) error {
	store := memstore.New()
	svc := service.NewServices(store.Orders, store.Plans, store.Users, lock.NewMemoryLocker(), nil, logger, service.Options{
		Parallelism: 4,
		LockTTL:     time.Minute,
	})
	actor := service.Actor{ID: "simulate", Name: "simulate", Role: policy.RoleAdmin}

	input := service.CreateOrderInput{
		OrderNumber:  fx.Order.OrderNumber,
		StyleNumber:  fx.Order.StyleNumber,
		CustomerName: fx.Order.CustomerName,
	}
	for _, it := range fx.Order.Items {
		input.Items = append(input.Items, entity.OrderItem{Color: it.Color, Size: it.Size, Quantity: it.Quantity})
	}
	order, err := svc.Order.Create(ctx, actor, input)
	if err != nil {
		return fmt.Errorf("创建订单失败: %w", err)
	}

	result, err := svc.Plan.CreatePlan(ctx, actor, service.CreatePlanInput{
		OrderID: order.ID,
		Name:    fx.Plan.Name,
		Layouts: toSpecs(fx.Plan.Layouts, nil),
	})
	if err != nil {
		return fmt.Errorf("创建计划失败: %w", err)
	}
	planID := result.Plan.ID
	if !asJSON {
		dimColor.Fprintf(out, "订单 %s  计划 %s\n", order.OrderNumber, result.Plan.Name)
		if result.Report != nil {
			printReport(out, "创建计划", result.Report)
		} else {
			warningColor.Fprintf(out, "  ⚠ %s\n", result.Outcome)
		}
	}

	for i, round := range fx.Edits {
		existing, err := store.Plans.ListLayouts(ctx, planID)
		if err != nil {
			return err
		}
		edited, err := svc.Plan.EditPlan(ctx, actor, planID, toSpecs(round, existing))
		if err != nil {
			return fmt.Errorf("第%d轮编辑失败: %w", i+1, err)
		}
		if !asJSON && edited.Report != nil {
			printReport(out, fmt.Sprintf("第%d轮编辑", i+1), edited.Report)
		}
	}

	if fx.Publish {
		if _, err := svc.Plan.Publish(ctx, actor, planID); err != nil {
			return fmt.Errorf("发布失败: %w", err)
		}
		if !asJSON {
			successColor.Fprintln(out, "\n✓ 计划已发布")
		}
	}

	if len(fx.Progress) > 0 {
		if err := applyProgress(ctx, svc, store, actor, planID, fx, out, asJSON); err != nil {
			return err
		}
	}

	m, err := svc.Plan.Matrices(ctx, actor, planID)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	printMatrix(out, m)
	return nil
}

func applyProgress(ctx context.Context, svc *service.Services, store *memstore.Store, actor service.Actor, planID string, fx *Fixture, out io.Writer, asJSON bool) error {
	layouts, err := store.Plans.ListLayouts(ctx, planID)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(layouts))
	for _, l := range layouts {
		names[l.ID] = l.Name
	}
	tasks, err := svc.Plan.Tasks(ctx, actor, planID)
	if err != nil {
		return err
	}

	for _, p := range fx.Progress {
		var task *entity.Task
		for i := range tasks {
			if names[tasks[i].LayoutID] == p.Layout && tasks[i].Color == p.Color {
				task = &tasks[i]
				break
			}
		}
		if task == nil {
			return fmt.Errorf("找不到任务: 版型 %s 颜色 %s", p.Layout, p.Color)
		}
		res, err := svc.Plan.RecordProgress(ctx, actor, task.ID, p.CompletedLayers)
		if err != nil {
			return fmt.Errorf("记录进度失败: %w", err)
		}
		if !asJSON {
			fmt.Fprintf(out, "  %s/%s 完成 %d/%d 层\n", p.Layout, p.Color, res.Task.CompletedLayers, res.Task.PlannedLayers)
			if res.PlanCompleted {
				successColor.Fprintln(out, "✓ 所有任务完成，计划已完成")
			}
		}
	}
	return nil
}
