package protocol

import "fmt"

// Immediate command opcodes (< 0x8000). Each is transmitted as a single
// 12-byte frame and acknowledged with an 8-byte status reply.
const (
	OpDisableLaser     uint16 = 0x0001
	OpEnableLaser      uint16 = 0x0002
	OpExecuteList      uint16 = 0x0003
	OpSetPwmPulseWidth uint16 = 0x0004
	OpGetVersion       uint16 = 0x0005
	OpGetSerialNo      uint16 = 0x0006
	OpGetListStatus    uint16 = 0x0007
	OpGetPositionXY    uint16 = 0x0009
	OpGotoXY           uint16 = 0x000A
	OpLaserSignalOff   uint16 = 0x000B
	OpLaserSignalOn    uint16 = 0x000C
	OpWriteCorLine     uint16 = 0x000D
	OpResetList        uint16 = 0x0010
	OpRestartList      uint16 = 0x0011
	OpWriteCorTable    uint16 = 0x0012
	OpSetControlMode   uint16 = 0x0013
	OpSetDelayMode     uint16 = 0x0014
	OpSetMaxPolyDelay  uint16 = 0x0015
	OpSetEndOfList     uint16 = 0x0016
	OpSetFirstPulseKiller uint16 = 0x0017
	OpSetLaserMode     uint16 = 0x0018
	OpSetTiming        uint16 = 0x0019
	OpSetStandby       uint16 = 0x001A
	OpSetPwmHalfPeriod uint16 = 0x001B
	OpStopExecute      uint16 = 0x001C
	OpStopList         uint16 = 0x001D
	OpWritePort        uint16 = 0x001E
	OpWriteAnalogPort1 uint16 = 0x001F
	OpWriteAnalogPort2 uint16 = 0x0020
	OpWriteAnalogPortX uint16 = 0x0021
	OpReadPort         uint16 = 0x0022
	OpSetAxisMotionParam uint16 = 0x0023
	OpSetAxisOriginParam uint16 = 0x0024
	OpAxisGoOrigin     uint16 = 0x0025
	OpMoveAxisTo       uint16 = 0x0026
	OpGetAxisPos       uint16 = 0x0027
	OpGetFlyWaitCount  uint16 = 0x0028
	OpGetMarkCount     uint16 = 0x0029
	OpSetFpkParam2     uint16 = 0x002A
	OpSetFiberConfig   uint16 = 0x002B
	OpGetFiberConfig   uint16 = 0x002C
	OpEnableZ          uint16 = 0x003A
	OpDisableZ         uint16 = 0x0039
	OpSetZData         uint16 = 0x003B
	OpSetSPISimmerCurrent uint16 = 0x003C
	OpSetFpkParam      uint16 = 0x0062
)

// List command opcodes (>= 0x8000). These are only ever transmitted
// inside a padded 3072-byte packet with no reply.
const (
	OpListJumpTo          uint16 = 0x8001
	OpListEndOfList       uint16 = 0x8002
	OpListLaserOnPoint    uint16 = 0x8003
	OpListDelayTime       uint16 = 0x8004
	OpListMarkTo          uint16 = 0x8005
	OpListJumpSpeed       uint16 = 0x8006
	OpListLaserOnDelay    uint16 = 0x8007
	OpListLaserOffDelay   uint16 = 0x8008
	OpListMarkFreq        uint16 = 0x800A
	OpListMarkPowerRatio  uint16 = 0x800B
	OpListMarkSpeed       uint16 = 0x800C
	OpListJumpDelay       uint16 = 0x800D
	OpListPolygonDelay    uint16 = 0x800F
	OpListWritePort       uint16 = 0x8010
	OpListMarkCurrent     uint16 = 0x8011
	OpListMarkFreq2       uint16 = 0x8012
	OpListFlyEnable       uint16 = 0x8013
	OpListQSwitchPeriod   uint16 = 0x8014
	OpListDirectLaserSwitch uint16 = 0x8015
	OpListFlyDelay        uint16 = 0x8016
	OpListSetCo2FPK       uint16 = 0x8017
	OpListFlyWaitInput    uint16 = 0x8018
	OpListFiberOpenMO     uint16 = 0x8019
	OpListWaitForInput    uint16 = 0x801A
	OpListChangeMarkCount uint16 = 0x801B
	OpListSetWeldPowerWave uint16 = 0x801C
	OpListEnableWeldPowerWave uint16 = 0x801D
	OpListFiberYLPMPulseWidth uint16 = 0x801E
	OpListFlyEncoderCount uint16 = 0x8021
	OpListSetDaZWord      uint16 = 0x8022
	OpListJptSetParam     uint16 = 0x8023
	OpListReadyMark       uint16 = 0x8025
)

var opcodeNames = map[uint16]string{
	OpDisableLaser:        "DisableLaser",
	OpEnableLaser:         "EnableLaser",
	OpExecuteList:         "ExecuteList",
	OpSetPwmPulseWidth:    "SetPwmPulseWidth",
	OpGetVersion:          "GetVersion",
	OpGetSerialNo:         "GetSerialNo",
	OpGetListStatus:       "GetListStatus",
	OpGetPositionXY:       "GetPositionXY",
	OpGotoXY:              "GotoXY",
	OpLaserSignalOff:      "LaserSignalOff",
	OpLaserSignalOn:       "LaserSignalOn",
	OpWriteCorLine:        "WriteCorLine",
	OpResetList:           "ResetList",
	OpRestartList:         "RestartList",
	OpWriteCorTable:       "WriteCorTable",
	OpSetControlMode:      "SetControlMode",
	OpSetDelayMode:        "SetDelayMode",
	OpSetMaxPolyDelay:     "SetMaxPolyDelay",
	OpSetEndOfList:        "SetEndOfList",
	OpSetFirstPulseKiller: "SetFirstPulseKiller",
	OpSetLaserMode:        "SetLaserMode",
	OpSetTiming:           "SetTiming",
	OpSetStandby:          "SetStandby",
	OpSetPwmHalfPeriod:    "SetPwmHalfPeriod",
	OpStopExecute:         "StopExecute",
	OpStopList:            "StopList",
	OpWritePort:           "WritePort",
	OpWriteAnalogPort1:    "WriteAnalogPort1",
	OpWriteAnalogPort2:    "WriteAnalogPort2",
	OpWriteAnalogPortX:    "WriteAnalogPortX",
	OpReadPort:            "ReadPort",
	OpSetAxisMotionParam:  "SetAxisMotionParam",
	OpSetAxisOriginParam:  "SetAxisOriginParam",
	OpAxisGoOrigin:        "AxisGoOrigin",
	OpMoveAxisTo:          "MoveAxisTo",
	OpGetAxisPos:          "GetAxisPos",
	OpGetFlyWaitCount:     "GetFlyWaitCount",
	OpGetMarkCount:        "GetMarkCount",
	OpSetFpkParam2:        "SetFpkParam2",
	OpSetFiberConfig:      "SetFiberConfig",
	OpGetFiberConfig:      "GetFiberConfig",
	OpEnableZ:             "EnableZ",
	OpDisableZ:            "DisableZ",
	OpSetZData:            "SetZData",
	OpSetSPISimmerCurrent: "SetSPISimmerCurrent",
	OpSetFpkParam:         "SetFpkParam",

	OpListJumpTo:              "ListJumpTo",
	OpListEndOfList:           "ListEndOfList",
	OpListLaserOnPoint:        "ListLaserOnPoint",
	OpListDelayTime:           "ListDelayTime",
	OpListMarkTo:              "ListMarkTo",
	OpListJumpSpeed:           "ListJumpSpeed",
	OpListLaserOnDelay:        "ListLaserOnDelay",
	OpListLaserOffDelay:       "ListLaserOffDelay",
	OpListMarkFreq:            "ListMarkFreq",
	OpListMarkPowerRatio:      "ListMarkPowerRatio",
	OpListMarkSpeed:           "ListMarkSpeed",
	OpListJumpDelay:           "ListJumpDelay",
	OpListPolygonDelay:        "ListPolygonDelay",
	OpListWritePort:           "ListWritePort",
	OpListMarkCurrent:         "ListMarkCurrent",
	OpListMarkFreq2:           "ListMarkFreq2",
	OpListFlyEnable:           "ListFlyEnable",
	OpListQSwitchPeriod:       "ListQSwitchPeriod",
	OpListDirectLaserSwitch:   "ListDirectLaserSwitch",
	OpListFlyDelay:            "ListFlyDelay",
	OpListSetCo2FPK:           "ListSetCo2FPK",
	OpListFlyWaitInput:        "ListFlyWaitInput",
	OpListFiberOpenMO:         "ListFiberOpenMO",
	OpListWaitForInput:        "ListWaitForInput",
	OpListChangeMarkCount:     "ListChangeMarkCount",
	OpListSetWeldPowerWave:    "ListSetWeldPowerWave",
	OpListEnableWeldPowerWave: "ListEnableWeldPowerWave",
	OpListFiberYLPMPulseWidth: "ListFiberYLPMPulseWidth",
	OpListFlyEncoderCount:     "ListFlyEncoderCount",
	OpListSetDaZWord:          "ListSetDaZWord",
	OpListJptSetParam:         "ListJptSetParam",
	OpListReadyMark:           "ListReadyMark",
}

// Name returns the mnemonic for an opcode, or a hex placeholder for ids
// outside the table.
func Name(id uint16) string {
	if n, ok := opcodeNames[id]; ok {
		return n
	}
	return fmt.Sprintf("Unknown(0x%04X)", id)
}
